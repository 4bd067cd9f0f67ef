package inbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/router"
)

// Config holds Inbox configuration.
type Config struct {
	UserID             string        // local user; replaced by the connection's user once connected
	ReconcileInterval  time.Duration // 0 disables periodic chat reloads
	InitialSyncTimeout time.Duration
	TypingTTL          time.Duration // typing indicators older than this are hidden
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  5 * time.Minute,
		InitialSyncTimeout: 30 * time.Second,
		TypingTTL:          10 * time.Second,
	}
}

// inboxImpl implements the Inbox interface.
type inboxImpl struct {
	cfg    Config
	rest   ChatSource
	events EventSource
	status StatusSource
	logger *slog.Logger
	now    func() time.Time

	state *inboxState

	selfMu sync.RWMutex
	self   string

	syncMu sync.Mutex // serialises syncs

	subs []*router.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Inbox. events may be nil for a REST-only inbox.
func New(cfg Config, rest ChatSource, events EventSource, logger *slog.Logger) Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.InitialSyncTimeout <= 0 {
		cfg.InitialSyncTimeout = def.InitialSyncTimeout
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = def.TypingTTL
	}

	return &inboxImpl{
		cfg:    cfg,
		rest:   rest,
		events: events,
		logger: logger,
		now:    time.Now,
		state:  newState(),
		self:   cfg.UserID,
	}
}

// Start registers router handlers, then performs the initial sync.
// A failed initial sync is logged; the next reconnect or reconcile retries it.
func (i *inboxImpl) Start(ctx context.Context) error {
	i.ctx, i.cancel = context.WithCancel(ctx)

	if i.events != nil {
		i.subs = append(i.subs,
			i.events.OnNewMessage(i.onMessage),
			i.events.OnTypingUpdate(i.onTyping),
			i.events.OnPresenceUpdate(i.onPresence),
			i.events.OnReadUpdate(i.onRead),
		)
	}

	if err := i.initialSync(i.ctx); err != nil {
		i.logger.Warn("initial inbox sync failed", "err", err)
	}

	if i.cfg.ReconcileInterval > 0 {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			i.reconciliationLoop(i.ctx)
		}()
	}

	if i.status != nil {
		// Watch before returning so no transition after Start is missed.
		updates, cancel := i.status.Watch(16)
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			defer cancel()
			i.statusLoop(i.ctx, updates)
		}()
	}

	i.logger.Info("inbox started",
		"chats", len(i.state.getChats()),
		"unread", i.state.getUnread().Total,
	)

	return nil
}

// Stop gracefully shuts down.
func (i *inboxImpl) Stop(ctx context.Context) error {
	for _, sub := range i.subs {
		sub.Unsubscribe()
	}
	i.subs = nil

	if i.cancel != nil {
		i.cancel()
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		i.logger.Info("inbox stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chats returns all chats, most recently active first.
func (i *inboxImpl) Chats() []model.Chat {
	return i.state.getChats()
}

// Chat returns a specific chat by ID.
func (i *inboxImpl) Chat(chatID string) (model.Chat, bool) {
	return i.state.getChat(chatID)
}

// UnreadCounts returns the current unread counters.
func (i *inboxImpl) UnreadCounts() model.UnreadCounts {
	return i.state.getUnread()
}

// TypingUsers returns the users currently typing in a chat.
func (i *inboxImpl) TypingUsers(chatID string) []string {
	return i.state.typingUsers(chatID, i.now().Add(-i.cfg.TypingTTL))
}

// Presence returns the last known online status of a user.
func (i *inboxImpl) Presence(userID string) (model.Presence, bool) {
	i.state.mu.RLock()
	defer i.state.mu.RUnlock()

	p, ok := i.state.presence[userID]
	return p, ok
}

// LastSyncAt returns when the last successful sync finished.
func (i *inboxImpl) LastSyncAt() time.Time {
	i.state.mu.RLock()
	defer i.state.mu.RUnlock()
	return i.state.lastSyncAt
}

// SubscribeChanges returns a channel of inbox changes.
func (i *inboxImpl) SubscribeChanges() <-chan Change {
	return i.state.changes
}

// SetStatusSource sets the connection to follow. Call before Start.
func (i *inboxImpl) SetStatusSource(src StatusSource) {
	i.status = src
}

// MarkRead clears the local unread counter of a chat.
func (i *inboxImpl) MarkRead(chatID string) {
	i.state.mu.Lock()
	i.state.addUnreadLocked(chatID, -i.state.unread.ByChat[chatID])
	i.state.mu.Unlock()

	i.state.notifyChange(Change{Kind: ChangeUnread, ChatID: chatID})
}

// HandleUnread applies counters fetched by the unread poller.
func (i *inboxImpl) HandleUnread(counts model.UnreadCounts) error {
	i.state.mu.Lock()
	i.state.setUnreadLocked(counts)
	i.state.mu.Unlock()

	i.state.notifyChange(Change{Kind: ChangeUnread})
	return nil
}

func (i *inboxImpl) selfID() string {
	i.selfMu.RLock()
	defer i.selfMu.RUnlock()
	return i.self
}

func (i *inboxImpl) setSelf(userID string) {
	if userID == "" {
		return
	}
	i.selfMu.Lock()
	i.self = userID
	i.selfMu.Unlock()
}
