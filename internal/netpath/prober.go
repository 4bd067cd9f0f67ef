package netpath

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

// ProberConfig holds Prober configuration.
type ProberConfig struct {
	Address          string        // host:port to dial
	Interval         time.Duration // Probe interval (default: 10s)
	Timeout          time.Duration // Per-dial timeout (default: 3s)
	FailureThreshold int           // Consecutive failures before unreachable (default: 2)
}

// DefaultProberConfig returns sensible defaults.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Interval:         10 * time.Second,
		Timeout:          3 * time.Second,
		FailureThreshold: 2,
	}
}

// ProbeAddress derives the host:port to probe from an API base URL.
func ProbeAddress(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http", "ws":
			port = "80"
		case "https", "wss":
			port = "443"
		default:
			return "", fmt.Errorf("base url %q: unsupported scheme %q", baseURL, u.Scheme)
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// dialFunc matches net.Dialer.DialContext.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober is a Monitor that dials the API host periodically and emits a
// value only when reachability changes.
type Prober struct {
	cfg    ProberConfig
	dial   dialFunc
	logger *slog.Logger

	updates chan bool

	// Owned by the probe goroutine.
	reachable bool
	failures  int

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewProber creates a Prober.
func NewProber(cfg ProberConfig, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultProberConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}

	d := &net.Dialer{}
	return &Prober{
		cfg:       cfg,
		dial:      d.DialContext,
		logger:    logger,
		updates:   make(chan bool, 1),
		reachable: true,
	}
}

// Start begins probing.
func (p *Prober) Start(ctx context.Context) error {
	if p.cfg.Address == "" {
		return fmt.Errorf("prober: address is required")
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("network prober started",
		"address", p.cfg.Address,
		"interval", p.cfg.Interval,
	)
	return nil
}

// Stop ends probing and closes Updates.
func (p *Prober) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates returns reachability transitions.
func (p *Prober) Updates() <-chan bool {
	return p.updates
}

func (p *Prober) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.updates)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

// probe dials once and emits on a transition.
func (p *Prober) probe(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", p.cfg.Address)
	if ctx.Err() != nil {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		p.failures++
		p.logger.Debug("probe failed", "address", p.cfg.Address, "failures", p.failures, "err", err)
		if p.reachable && p.failures >= p.cfg.FailureThreshold {
			p.reachable = false
			p.emit(false)
		}
		return
	}
	conn.Close()

	p.failures = 0
	if !p.reachable {
		p.reachable = true
		p.emit(true)
	}
}

// emit publishes v, replacing an unread older value.
func (p *Prober) emit(v bool) {
	select {
	case p.updates <- v:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- v:
		default:
		}
	}
}
