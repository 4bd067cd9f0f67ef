package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/router"
)

const (
	insertTransition = `
		INSERT INTO connection_transitions (id, user_id, session_id, from_state, to_state, attempt, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	insertPresence = `
		INSERT INTO presence_observations (id, observer_id, user_id, is_online, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
)

// Writer batches journal rows and inserts them into PostgreSQL.
type Writer struct {
	cfg        Config
	logger     *slog.Logger
	observerID string

	// Sources, set before Start
	status   StatusSource
	presence PresenceSource
	sub      *router.Subscription

	// Input queue
	input *router.GrowableBuffer[entry]

	// Database
	db BatchSender

	// Batching
	batch       []entry
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
}

// NewWriter creates a new Writer. observerID is the local user recorded
// against presence rows.
func NewWriter(cfg Config, db BatchSender, observerID string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	return &Writer{
		cfg:        cfg,
		logger:     logger,
		observerID: observerID,
		input:      router.NewGrowableBuffer[entry](cfg.BufferSize),
		db:         db,
		batch:      make([]entry, 0, cfg.BatchSize),
	}
}

// FollowStatus records every transition of src. Call before Start.
func (w *Writer) FollowStatus(src StatusSource) {
	w.status = src
}

// FollowPresence records every presence event from src. Call before Start.
func (w *Writer) FollowPresence(src PresenceSource) {
	w.presence = src
}

// Start begins consuming rows and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	if w.status != nil {
		updates, cancel := w.status.Watch(64)
		prev := w.status.State()
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer cancel()
			w.statusLoop(updates, prev)
		}()
	}

	if w.presence != nil {
		w.sub = w.presence.OnPresenceUpdate(func(userID string, isOnline bool) {
			w.RecordPresence(userID, isOnline, time.Now())
		})
	}

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer and flushes what is queued.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.sub.Unsubscribe()

	if w.cancel != nil {
		w.cancel()
	}
	w.input.Close()

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush, including anything the consumer did not reach.
	for _, e := range w.input.DrainTo(0) {
		w.append(e)
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// RecordTransition queues a from -> to transition.
func (w *Writer) RecordTransition(from, to connection.Status) {
	row := transitionRow{
		ID:         uuid.New(),
		UserID:     to.UserID,
		FromState:  from.State.String(),
		ToState:    to.State.String(),
		Attempt:    to.Attempt,
		OccurredAt: to.At.UTC(),
	}
	if row.UserID == "" {
		row.UserID = from.UserID
	}
	if to.SessionID != uuid.Nil {
		id := to.SessionID
		row.SessionID = &id
	}
	if to.Reason != nil {
		reason := to.Reason.Error()
		row.Reason = &reason
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = time.Now().UTC()
	}

	if w.input.Send(entry{transition: &row}) {
		w.count(func(m *Metrics) { m.Transitions++ })
	}
}

// RecordPresence queues a presence observation.
func (w *Writer) RecordPresence(userID string, isOnline bool, at time.Time) {
	row := presenceRow{
		ID:         uuid.New(),
		ObserverID: w.observerID,
		UserID:     userID,
		IsOnline:   isOnline,
		ObservedAt: at.UTC(),
	}

	if w.input.Send(entry{presence: &row}) {
		w.count(func(m *Metrics) { m.Presence++ })
	}
}

// statusLoop turns published statuses into transition rows.
func (w *Writer) statusLoop(updates <-chan connection.Status, prev connection.Status) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			w.RecordTransition(prev, st)
			prev = st
		}
	}
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		e, ok := w.input.Receive()
		if !ok {
			return
		}
		if w.append(e) {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// append adds a row to the batch and reports whether it is full.
func (w *Writer) append(e entry) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, e)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]entry, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		return
	}

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("journal batch insert failed", "error", err, "count", len(batch))
		w.count(func(m *Metrics) { m.Errors++ })
		return
	}

	w.count(func(m *Metrics) {
		m.Inserts += int64(len(batch) - conflicts)
		m.Conflicts += int64(conflicts)
		m.Flushes++
	})

	w.logger.Debug("flushed journal rows",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []entry) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, e := range rows {
		switch {
		case e.transition != nil:
			r := e.transition
			batch.Queue(insertTransition,
				r.ID, r.UserID, r.SessionID, r.FromState, r.ToState, r.Attempt, r.Reason, r.OccurredAt)
		case e.presence != nil:
			r := e.presence
			batch.Queue(insertPresence,
				r.ID, r.ObserverID, r.UserID, r.IsOnline, r.ObservedAt)
		}
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

func (w *Writer) count(f func(*Metrics)) {
	w.batchMu.Lock()
	f(&w.metrics)
	w.batchMu.Unlock()
}
