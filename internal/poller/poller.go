package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karmaloop/chatcore/internal/model"
)

// UnreadSource fetches unread counters. *api.Client satisfies it.
type UnreadSource interface {
	GetUnreadCount(ctx context.Context) (model.UnreadCounts, error)
}

// UnreadHandler receives fetched counters.
type UnreadHandler interface {
	HandleUnread(counts model.UnreadCounts) error
}

// UnreadHandlerFunc is a function adapter for UnreadHandler.
type UnreadHandlerFunc func(model.UnreadCounts) error

func (f UnreadHandlerFunc) HandleUnread(c model.UnreadCounts) error {
	return f(c)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Stats counts poll outcomes.
type Stats struct {
	Polls       int64
	Failures    int64
	LastSuccess time.Time
	LastTotal   int
}

// Poller periodically fetches unread counters via the REST API.
type Poller struct {
	cfg     Config
	source  UnreadSource
	handler UnreadHandler
	logger  *slog.Logger

	refresh chan struct{}

	polls    atomic.Int64
	failures atomic.Int64

	mu   sync.Mutex
	last Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source UnreadSource, handler UnreadHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("unread poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("unread poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh requests an immediate poll. Requests made while one is already
// pending coalesce.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	s := p.last
	p.mu.Unlock()
	s.Polls = p.polls.Load()
	s.Failures = p.failures.Load()
	return s
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		case <-p.refresh:
			p.poll()
			ticker.Reset(p.cfg.Interval)
		}
	}
}

// poll fetches and handles the counters once.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	p.polls.Add(1)

	counts, err := p.source.GetUnreadCount(ctx)
	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		p.failures.Add(1)
		p.logger.Warn("failed to poll unread count", "err", err)
		return
	}

	if p.handler != nil {
		if err := p.handler.HandleUnread(counts); err != nil {
			p.failures.Add(1)
			p.logger.Warn("failed to handle unread count", "err", err)
			return
		}
	}

	p.mu.Lock()
	p.last.LastSuccess = time.Now()
	p.last.LastTotal = counts.Total
	p.mu.Unlock()

	p.logger.Debug("unread poll complete", "total", counts.Total, "chats", len(counts.ByChat))
}
