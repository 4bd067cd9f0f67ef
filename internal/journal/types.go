package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/router"
)

// Config holds journal writer settings.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the initial capacity of the input queue.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1000,
	}
}

// Metrics counts writer outcomes.
type Metrics struct {
	Transitions int64 // rows accepted
	Presence    int64
	Inserts     int64
	Conflicts   int64
	Errors      int64
	Flushes     int64
}

// BatchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// StatusSource publishes connection state. *connection.Manager satisfies it.
type StatusSource interface {
	State() connection.Status
	Watch(buffer int) (<-chan connection.Status, func())
}

// PresenceSource delivers presence events. *router.Router satisfies it.
type PresenceSource interface {
	OnPresenceUpdate(h router.PresenceHandler) *router.Subscription
}

// transitionRow is one connection_transitions row.
type transitionRow struct {
	ID         uuid.UUID
	UserID     string
	SessionID  *uuid.UUID
	FromState  string
	ToState    string
	Attempt    int
	Reason     *string
	OccurredAt time.Time
}

// presenceRow is one presence_observations row.
type presenceRow struct {
	ID         uuid.UUID
	ObserverID string
	UserID     string
	IsOnline   bool
	ObservedAt time.Time
}

// entry is a queued row of either kind.
type entry struct {
	transition *transitionRow
	presence   *presenceRow
}
