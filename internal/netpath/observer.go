package netpath

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Target receives reachability transitions. *connection.Manager satisfies it.
type Target interface {
	NetworkChanged(reachable bool)
}

// Monitor produces reachability values.
type Monitor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Updates returns the channel of reachability values. It is closed when
	// the monitor stops.
	Updates() <-chan bool
}

// Observer forwards reachability transitions from a Monitor to a Target.
// Repeated values are collapsed.
type Observer struct {
	monitor Monitor
	target  Target
	logger  *slog.Logger

	known       atomic.Bool // a value has been observed
	reachable   atomic.Bool
	transitions atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewObserver creates an Observer.
func NewObserver(monitor Monitor, target Target, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Observer{
		monitor: monitor,
		target:  target,
		logger:  logger,
	}
	// The path is assumed up until a monitor says otherwise.
	o.reachable.Store(true)
	return o
}

// Start starts the monitor and begins forwarding.
func (o *Observer) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	if err := o.monitor.Start(o.ctx); err != nil {
		o.cancel()
		return err
	}

	o.wg.Add(1)
	go o.run()

	o.logger.Info("network observer started")
	return nil
}

// Stop stops the monitor and waits for forwarding to end.
func (o *Observer) Stop(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	err := o.monitor.Stop(ctx)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("network observer stopped", "transitions", o.transitions.Load())
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reachable reports the last observed reachability.
func (o *Observer) Reachable() bool {
	return o.reachable.Load()
}

// Transitions returns how many transitions were forwarded.
func (o *Observer) Transitions() int64 {
	return o.transitions.Load()
}

func (o *Observer) run() {
	defer o.wg.Done()

	updates := o.monitor.Updates()
	for {
		select {
		case <-o.ctx.Done():
			return
		case reachable, ok := <-updates:
			if !ok {
				return
			}
			o.observe(reachable)
		}
	}
}

func (o *Observer) observe(reachable bool) {
	first := !o.known.Swap(true)
	if !first && o.reachable.Load() == reachable {
		return
	}
	// A first "reachable" matches the assumed state and is not a transition.
	if first && reachable {
		return
	}

	o.reachable.Store(reachable)
	o.transitions.Add(1)

	if reachable {
		o.logger.Info("network path restored")
	} else {
		o.logger.Warn("network path lost")
	}
	o.target.NetworkChanged(reachable)
}
