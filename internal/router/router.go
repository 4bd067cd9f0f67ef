package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/karmaloop/chatcore/internal/event"
	"github.com/karmaloop/chatcore/internal/model"
)

// Router fans decoded socket events out to registered handlers.
type Router struct {
	cfg    Config
	logger *slog.Logger

	// Input from the connection read loop
	queue *GrowableBuffer[event.Event]

	messages registry[MessageHandler]
	typing   registry[TypingHandler]
	presence registry[PresenceHandler]
	reads    registry[ReadHandler]

	// Lifecycle
	startOnce sync.Once
	done      chan struct{}

	// Stats
	mu    sync.Mutex
	stats Stats
}

// New creates a new Event Router.
func New(cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		cfg:    cfg,
		logger: logger,
		queue:  NewGrowableBuffer[event.Event](cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start begins draining the queue on a single goroutine.
func (r *Router) Start(ctx context.Context) error {
	r.startOnce.Do(func() {
		go r.routeLoop()

		// Closing the queue lets the loop drain what is left and exit.
		go func() {
			<-ctx.Done()
			r.queue.Close()
		}()

		r.logger.Info("event router started", "queue_size", r.cfg.QueueSize)
	})
	return nil
}

// Stop closes the queue and waits for queued events to be dispatched.
func (r *Router) Stop(ctx context.Context) error {
	// A router that never started has nothing to drain.
	r.startOnce.Do(func() { close(r.done) })
	r.queue.Close()

	select {
	case <-r.done:
		r.logger.Info("event router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out", "pending", r.queue.Len())
		return ctx.Err()
	}
}

// Submit queues an event for ordered dispatch. It never blocks.
// Returns false once the router is stopped.
func (r *Router) Submit(ev event.Event) bool {
	return r.queue.Send(ev)
}

// OnNewMessage registers a handler for new_message events.
func (r *Router) OnNewMessage(h MessageHandler) *Subscription {
	return r.messages.add(h)
}

// OnTypingUpdate registers a handler for typing_start/typing_stop events.
func (r *Router) OnTypingUpdate(h TypingHandler) *Subscription {
	return r.typing.add(h)
}

// OnPresenceUpdate registers a handler for presence events.
func (r *Router) OnPresenceUpdate(h PresenceHandler) *Subscription {
	return r.presence.add(h)
}

// OnReadUpdate registers a handler for message_read events.
func (r *Router) OnReadUpdate(h ReadHandler) *Subscription {
	return r.reads.add(h)
}

// HandlerCount returns the number of live registrations across all categories.
func (r *Router) HandlerCount() int {
	return r.messages.len() + r.typing.len() + r.presence.len() + r.reads.len()
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stats
	s.Queue = r.queue.Stats()
	return s
}

// routeLoop is the only consumer of the queue.
func (r *Router) routeLoop() {
	defer close(r.done)

	for {
		ev, ok := r.queue.Receive()
		if !ok {
			return
		}
		r.Dispatch(ev)
	}
}

// Dispatch delivers ev to the matching handlers on the calling goroutine.
func (r *Router) Dispatch(ev event.Event) {
	r.count(func(s *Stats) { s.Received++ })

	switch ev.Kind {
	case event.KindNewMessage:
		chatID := ev.ChatID()
		if chatID == "" {
			r.invalid(ev, "missing chat_id")
			return
		}
		msg := messageOf(ev)
		for _, h := range r.messages.snapshot() {
			r.invoke(ev.Kind, func() { h(chatID, msg) })
		}

	case event.KindTypingStart, event.KindTypingStop:
		if ev.Payload.ChatID == "" || ev.Payload.UserID == "" {
			r.invalid(ev, "missing chat_id or user_id")
			return
		}
		isTyping := ev.Kind == event.KindTypingStart
		for _, h := range r.typing.snapshot() {
			r.invoke(ev.Kind, func() { h(ev.Payload.ChatID, ev.Payload.UserID, isTyping) })
		}

	case event.KindPresence:
		if ev.Payload.UserID == "" || ev.Payload.IsOnline == nil {
			r.invalid(ev, "missing user_id or is_online")
			return
		}
		isOnline := *ev.Payload.IsOnline
		for _, h := range r.presence.snapshot() {
			r.invoke(ev.Kind, func() { h(ev.Payload.UserID, isOnline) })
		}

	case event.KindMessageRead:
		if ev.Payload.ChatID == "" || ev.Payload.MessageID == "" {
			r.invalid(ev, "missing chat_id or message_id")
			return
		}
		for _, h := range r.reads.snapshot() {
			r.invoke(ev.Kind, func() { h(ev.Payload.ChatID, ev.Payload.UserID, ev.Payload.MessageID) })
		}

	case event.KindConnect, event.KindDisconnect, event.KindJoinChat, event.KindLeaveChat:
		r.count(func(s *Stats) { s.Bookkeeping++ })
		r.logger.Debug("protocol event", "event", ev.Kind, "chat_id", ev.Payload.ChatID, "user_id", ev.Payload.UserID)

	case event.KindError:
		r.count(func(s *Stats) { s.Errors++ })
		r.logger.Warn("server reported error", "content", ev.Payload.Content, "chat_id", ev.Payload.ChatID)

	default:
		r.count(func(s *Stats) { s.Unknown++ })
		r.logger.Debug("skipping unknown event", "event", ev.Kind)
	}
}

// invoke runs one handler; a panicking handler must not stop dispatch for the session.
func (r *Router) invoke(kind event.Kind, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.count(func(s *Stats) { s.Panics++ })
			r.logger.Error("event handler panicked", "event", kind, "panic", p)
		}
	}()

	fn()
	r.count(func(s *Stats) { s.Dispatched++ })
}

func (r *Router) invalid(ev event.Event, reason string) {
	r.count(func(s *Stats) { s.Invalid++ })
	r.logger.Warn("dropping invalid event", "event", ev.Kind, "reason", reason)
}

func (r *Router) count(f func(*Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

// messageOf returns the embedded message, or one assembled from the flat payload
// for servers that omit the message object.
func messageOf(ev event.Event) model.Message {
	if ev.Payload.Message != nil {
		msg := *ev.Payload.Message
		if msg.ChatID == "" {
			msg.ChatID = ev.ChatID()
		}
		return msg
	}

	return model.Message{
		ID:        ev.Payload.MessageID,
		ChatID:    ev.Payload.ChatID,
		SenderID:  ev.Payload.UserID,
		Content:   ev.Payload.Content,
		CreatedAt: ev.Timestamp,
	}
}
