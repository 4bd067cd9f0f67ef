package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/karmaloop/chatcore/internal/auth"
	"github.com/karmaloop/chatcore/internal/event"
	"github.com/karmaloop/chatcore/internal/version"
)

// Commands handled by the worker.
type (
	connectCmd    struct{ userID string }
	disconnectCmd struct{}
	sendCmd       struct {
		ev     event.Event
		result chan error // nil for fire-and-forget
	}
	dialResult struct {
		gen       uint64
		transport Transport
		err       error
	}
	readFailed struct {
		gen uint64
		err error
	}
	retryDue   struct{ gen uint64 }
	networkCmd struct{ reachable bool }
	resumeCmd  struct{}
)

// Manager owns the chat session. Every mutation runs on one worker goroutine;
// public methods enqueue a command and return.
type Manager struct {
	cfg    ManagerConfig
	dialer Dialer
	tokens auth.TokenSource
	sink   Sink
	logger *slog.Logger

	state *StateCell
	cmds  chan any

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}

	// Owned by the worker goroutine.
	userID     string
	sessionID  uuid.UUID
	attempts   int
	gen        uint64 // bumped on every teardown; older dial/read/timer results are stale
	transport  Transport
	dialCancel context.CancelFunc
	retryTimer *time.Timer
	suspended  bool  // session dropped by network loss, not by the caller
	exhausted  bool  // suspended while Failed with no retries left
	lastErr    error // reason of the last failure
	joined     []string

	// Stats
	framesRead     atomic.Int64
	decodeErrors   atomic.Int64
	framesSent     atomic.Int64
	sendsDropped   atomic.Int64
	dials          atomic.Int64
	sessionsOpened atomic.Int64
}

// NewManager creates a Connection Manager. tokens may be nil for endpoints
// that need no credential.
func NewManager(cfg ManagerConfig, dialer Dialer, tokens auth.TokenSource, sink Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandBuffer < 1 {
		cfg.CommandBuffer = DefaultManagerConfig().CommandBuffer
	}
	if cfg.Reconnect == (ReconnectPolicy{}) {
		cfg.Reconnect = DefaultReconnectPolicy()
	}
	if cfg.SendPolicy == "" {
		cfg.SendPolicy = SendDrop
	}

	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		tokens: tokens,
		sink:   sink,
		logger: logger,
		state:  NewStateCell(),
		cmds:   make(chan any, cfg.CommandBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. Cancelling ctx has the same effect as Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.ctx, m.cancel = context.WithCancel(ctx)
		go m.run()
		m.logger.Info("connection manager started", "send_policy", m.cfg.SendPolicy)
	})
	return nil
}

// Stop performs an implicit Disconnect and waits for the worker to exit.
func (m *Manager) Stop(ctx context.Context) error {
	m.startOnce.Do(func() {
		m.state.close()
		close(m.done)
	})
	m.stopOnce.Do(func() { close(m.quit) })

	select {
	case <-m.done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}
}

// Connect binds userID and opens the session. A no-op while Connected or Connecting.
func (m *Manager) Connect(userID string) {
	m.enqueue(connectCmd{userID: userID})
}

// Disconnect closes the session and forgets the user. Idempotent.
func (m *Manager) Disconnect() {
	m.enqueue(disconnectCmd{})
}

// Send writes ev if Connected; otherwise it is dropped.
func (m *Manager) Send(ev event.Event) {
	m.enqueue(sendCmd{ev: ev})
}

// JoinChat subscribes the session to chatID. Joined chats are re-joined after a reconnect.
func (m *Manager) JoinChat(chatID string) {
	m.Send(event.JoinChat(chatID))
}

// LeaveChat unsubscribes the session from chatID.
func (m *Manager) LeaveChat(chatID string) {
	m.Send(event.LeaveChat(chatID))
}

// SendMessage sends a chat message. Under SendDrop it behaves like Send and
// returns nil. Under SendReject it waits for the worker and returns
// ErrNotConnected when the session is not Connected.
func (m *Manager) SendMessage(ctx context.Context, chatID, content string) error {
	ev := event.SendMessage(chatID, content)

	if m.cfg.SendPolicy != SendReject {
		if !m.enqueue(sendCmd{ev: ev}) {
			return ErrClosed
		}
		return nil
	}

	result := make(chan error, 1)
	if !m.enqueue(sendCmd{ev: ev, result: result}) {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateTypingStatus announces that the current user started or stopped typing.
func (m *Manager) UpdateTypingStatus(chatID string, isTyping bool) {
	m.Send(event.Typing(chatID, m.state.Load().UserID, isTyping))
}

// MarkMessageAsRead sends a read receipt for messageID.
func (m *Manager) MarkMessageAsRead(chatID, messageID string) {
	m.Send(event.MessageRead(chatID, m.state.Load().UserID, messageID))
}

// NetworkChanged reports a reachability transition.
func (m *Manager) NetworkChanged(reachable bool) {
	m.enqueue(networkCmd{reachable: reachable})
}

// Resume signals that the app returned to the foreground.
func (m *Manager) Resume() {
	m.enqueue(resumeCmd{})
}

// State returns the current status.
func (m *Manager) State() Status {
	return m.state.Load()
}

// Watch streams every subsequent status until cancel is called or the manager stops.
func (m *Manager) Watch(buffer int) (<-chan Status, func()) {
	return m.state.Watch(buffer)
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		FramesRead:     m.framesRead.Load(),
		DecodeErrors:   m.decodeErrors.Load(),
		FramesSent:     m.framesSent.Load(),
		SendsDropped:   m.sendsDropped.Load(),
		Dials:          m.dials.Load(),
		SessionsOpened: m.sessionsOpened.Load(),
	}
}

// enqueue hands cmd to the worker. Returns false once the manager is stopped.
func (m *Manager) enqueue(cmd any) bool {
	select {
	case <-m.quit:
		return false
	case <-m.done:
		return false
	default:
	}

	select {
	case m.cmds <- cmd:
		return true
	case <-m.quit:
		return false
	case <-m.done:
		return false
	}
}

// run is the worker loop.
func (m *Manager) run() {
	defer close(m.done)
	defer m.state.close()
	defer m.cancel()

	for {
		select {
		case cmd := <-m.cmds:
			m.handle(cmd)
		case <-m.quit:
			m.disconnect()
			return
		case <-m.ctx.Done():
			m.disconnect()
			return
		}
	}
}

func (m *Manager) handle(cmd any) {
	switch c := cmd.(type) {
	case connectCmd:
		m.connect(c.userID)
	case disconnectCmd:
		m.disconnect()
	case sendCmd:
		err := m.send(c.ev)
		if c.result != nil {
			c.result <- err
		}
	case dialResult:
		m.dialed(c)
	case readFailed:
		if c.gen != m.gen {
			return
		}
		m.fail(fmt.Errorf("%w: read: %w", ErrTransport, c.err))
	case retryDue:
		if c.gen != m.gen || m.state.Load().State != Reconnecting {
			return
		}
		m.retryTimer = nil
		m.startDial()
	case networkCmd:
		m.networkChanged(c.reachable)
	case resumeCmd:
		m.resume()
	}
}

func (m *Manager) connect(userID string) {
	st := m.state.Load().State

	switch st {
	case Connected, Connecting:
		if userID != m.userID {
			m.logger.Warn("connect ignored, session bound to another user",
				"user_id", m.userID, "requested", userID)
		}
		return
	case Reconnecting:
		if userID != m.userID {
			m.logger.Warn("connect ignored, session bound to another user",
				"user_id", m.userID, "requested", userID)
			return
		}
		// Explicit connect while backing off retries now.
		if m.dialCancel == nil {
			m.startDial()
		}
		return
	}

	if userID != m.userID {
		m.joined = nil
	}
	m.userID = userID
	m.attempts = 0
	m.suspended = false
	m.exhausted = false
	m.lastErr = nil

	if m.transition(Connecting, nil) {
		m.startDial()
	}
}

// disconnect tears the session down and forgets the user.
func (m *Manager) disconnect() {
	st := m.state.Load().State
	if st == Connected {
		m.writeQuiet(event.Disconnect(m.userID))
	}

	m.teardown()
	m.userID = ""
	m.sessionID = uuid.Nil
	m.attempts = 0
	m.suspended = false
	m.exhausted = false
	m.lastErr = nil
	m.joined = nil

	if st != Disconnected {
		m.transition(Disconnected, nil)
	}
}

func (m *Manager) send(ev event.Event) error {
	err := m.write(ev)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			m.logger.Debug("dropping outbound event", "event", ev.Kind, "state", m.state.Load().State.String())
		}
		return err
	}

	switch ev.Kind {
	case event.KindJoinChat:
		m.remember(ev.Payload.ChatID)
	case event.KindLeaveChat:
		m.forget(ev.Payload.ChatID)
	}
	return nil
}

// write encodes and writes ev. A write error fails the session.
func (m *Manager) write(ev event.Event) error {
	if m.transport == nil || m.state.Load().State != Connected {
		m.sendsDropped.Add(1)
		return ErrNotConnected
	}

	data, err := event.Encode(ev)
	if err != nil {
		m.logger.Error("failed to encode event", "event", ev.Kind, "error", err)
		return err
	}

	if err := m.transport.WriteMessage(data); err != nil {
		err = fmt.Errorf("%w: write: %w", ErrTransport, err)
		m.fail(err)
		return err
	}

	m.framesSent.Add(1)
	return nil
}

// writeQuiet is a best-effort write used right before teardown.
func (m *Manager) writeQuiet(ev event.Event) {
	if m.transport == nil {
		return
	}
	data, err := event.Encode(ev)
	if err != nil {
		return
	}
	if err := m.transport.WriteMessage(data); err != nil {
		m.logger.Debug("failed to send disconnect", "error", err)
		return
	}
	m.framesSent.Add(1)
}

func (m *Manager) startDial() {
	m.stopRetryTimer()
	m.gen++
	gen := m.gen
	userID := m.userID

	ctx, cancel := context.WithCancel(m.ctx)
	m.dialCancel = cancel
	m.dials.Add(1)

	go func() {
		t, err := m.dial(ctx, userID)
		if !m.enqueue(dialResult{gen: gen, transport: t, err: err}) && t != nil {
			t.Close()
		}
	}()
}

// dial runs off the worker goroutine.
func (m *Manager) dial(ctx context.Context, userID string) (Transport, error) {
	endpoint, err := BuildEndpoint(m.cfg.BaseURL, userID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	if m.tokens != nil {
		token, err := m.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: obtain token: %w", ErrAuthentication, err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	t, err := m.dialer.Dial(ctx, endpoint, header)
	if err != nil {
		if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return t, nil
}

func (m *Manager) dialed(r dialResult) {
	if r.gen != m.gen {
		if r.transport != nil {
			r.transport.Close()
		}
		return
	}

	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}

	if r.err != nil {
		m.fail(r.err)
		return
	}

	m.transport = r.transport
	m.attempts = 0
	m.suspended = false
	m.exhausted = false
	m.lastErr = nil
	m.sessionID = uuid.New()
	m.sessionsOpened.Add(1)

	if !m.transition(Connected, nil) {
		m.teardown()
		return
	}

	go m.readLoop(m.gen, r.transport)

	if err := m.write(event.Connect(m.userID)); err != nil {
		return
	}
	for _, chatID := range m.joined {
		if err := m.write(event.JoinChat(chatID)); err != nil {
			return
		}
	}
}

// fail applies the reconnection policy to err.
func (m *Manager) fail(err error) {
	m.teardown()
	m.sessionID = uuid.Nil
	m.lastErr = err

	if terminal(err) {
		m.transition(Failed, err)
		return
	}

	if !m.cfg.Reconnect.CanRetry(m.attempts) {
		m.transition(Failed, fmt.Errorf("%w (%d): %w", ErrMaxReconnectAttempts, m.attempts, err))
		return
	}

	m.transition(Failed, err)
	m.attempts++
	if m.transition(Reconnecting, nil) {
		m.scheduleRetry()
	}
}

func (m *Manager) scheduleRetry() {
	delay := m.cfg.Reconnect.Delay(m.attempts)
	gen := m.gen

	m.retryTimer = time.AfterFunc(delay, func() {
		m.enqueue(retryDue{gen: gen})
	})

	m.logger.Info("reconnect scheduled", "user_id", m.userID, "attempt", m.attempts, "delay", delay)
}

func (m *Manager) stopRetryTimer() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// teardown cancels the dial, the backoff timer and the transport. The read loop
// exits on the closed transport and its result is discarded as stale.
func (m *Manager) teardown() {
	m.gen++
	m.stopRetryTimer()

	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
}

func (m *Manager) networkChanged(reachable bool) {
	st := m.state.Load().State

	if !reachable {
		m.logger.Info("network unreachable", "state", st.String())
		if st == Disconnected {
			return
		}
		m.teardown()
		m.sessionID = uuid.Nil
		switch {
		case m.userID == "":
			m.suspended = false
		case st == Failed && terminal(m.lastErr):
			// Terminal failures wait for an explicit Connect.
			m.suspended = false
		case st == Failed:
			m.suspended = true
			m.exhausted = true
		default:
			m.suspended = true
		}
		m.transition(Disconnected, nil)
		return
	}

	m.logger.Info("network reachable", "state", st.String(), "attempt", m.attempts)

	if st == Connected || st == Connecting || m.userID == "" {
		return
	}
	if m.attempts == 0 && !m.suspended {
		return
	}

	switch st {
	case Reconnecting:
		// Skip the remaining backoff.
		if m.dialCancel == nil {
			m.startDial()
		}
	case Disconnected:
		if !m.suspended {
			return
		}
		if m.exhausted {
			if !m.cfg.RearmOnRecovery {
				return
			}
			m.attempts = 0
			m.exhausted = false
		}
		if m.transition(Connecting, nil) {
			m.startDial()
		}
	case Failed:
		if terminal(m.lastErr) || !m.cfg.RearmOnRecovery {
			return
		}
		m.rearm()
	}
}

func (m *Manager) resume() {
	st := m.state.Load().State
	if st != Failed || m.userID == "" || terminal(m.lastErr) {
		return
	}
	if !m.cfg.RearmOnResume {
		m.logger.Debug("resume ignored, rearm disabled", "user_id", m.userID)
		return
	}
	m.rearm()
}

// rearm restarts automatic reconnection after attempts were exhausted.
func (m *Manager) rearm() {
	m.attempts = 0
	if m.transition(Connecting, nil) {
		m.startDial()
	}
}

// transition publishes to if the edge is allowed.
func (m *Manager) transition(to State, reason error) bool {
	from := m.state.Load().State
	if !CanTransition(from, to) {
		m.logger.Error("rejected state transition", "from", from.String(), "to", to.String())
		return false
	}

	m.state.publish(Status{
		State:     to,
		Reason:    reason,
		UserID:    m.userID,
		SessionID: m.sessionID,
		Attempt:   m.attempts,
		At:        time.Now(),
	})

	attrs := []any{"from", from.String(), "to", to.String(), "user_id", m.userID, "attempt", m.attempts}
	if reason != nil {
		attrs = append(attrs, "error", reason)
		m.logger.Warn("connection state changed", attrs...)
	} else {
		m.logger.Info("connection state changed", attrs...)
	}
	return true
}

// readLoop is the only producer into the sink for one transport.
func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			m.enqueue(readFailed{gen: gen, err: err})
			return
		}

		ev, err := event.Decode(data)
		if err != nil {
			m.decodeErrors.Add(1)
			m.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}

		m.framesRead.Add(1)
		if m.sink != nil && !m.sink.Submit(ev) {
			m.logger.Debug("event sink closed, dropping event", "event", ev.Kind)
		}
	}
}

func (m *Manager) remember(chatID string) {
	for _, id := range m.joined {
		if id == chatID {
			return
		}
	}
	m.joined = append(m.joined, chatID)
}

func (m *Manager) forget(chatID string) {
	for i, id := range m.joined {
		if id == chatID {
			m.joined = append(m.joined[:i:i], m.joined[i+1:]...)
			return
		}
	}
}
