package inbox

import (
	"context"
	"time"

	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/router"
)

// ChangeBufferSize is the capacity of the Change channel.
const ChangeBufferSize = 1000

// Inbox holds the UI-facing view of the user's chats.
type Inbox interface {
	// Start registers router handlers and performs the initial sync.
	Start(ctx context.Context) error

	// Stop disposes router handlers and shuts down background loops.
	Stop(ctx context.Context) error

	// Chats returns all chats, most recently active first.
	Chats() []model.Chat

	// Chat returns a specific chat by ID.
	Chat(chatID string) (model.Chat, bool)

	// UnreadCounts returns the current unread counters.
	UnreadCounts() model.UnreadCounts

	// TypingUsers returns the users currently typing in a chat.
	TypingUsers(chatID string) []string

	// Presence returns the last known online status of a user.
	Presence(userID string) (model.Presence, bool)

	// MarkRead clears the local unread counter of a chat.
	MarkRead(chatID string)

	// HandleUnread applies counters fetched by the unread poller.
	HandleUnread(counts model.UnreadCounts) error

	// Resync reloads chats and counters from the REST API.
	Resync(ctx context.Context) error

	// LastSyncAt returns when the last successful sync finished.
	LastSyncAt() time.Time

	// SubscribeChanges returns a channel of inbox changes.
	SubscribeChanges() <-chan Change

	// SetStatusSource sets the connection whose Connected transitions
	// trigger a resync.
	SetStatusSource(src StatusSource)
}

// ChatSource fetches chat state over REST. *api.Client satisfies it.
type ChatSource interface {
	GetChats(ctx context.Context) ([]model.Chat, error)
	GetUnreadCount(ctx context.Context) (model.UnreadCounts, error)
}

// EventSource delivers realtime events. *router.Router satisfies it.
type EventSource interface {
	OnNewMessage(h router.MessageHandler) *router.Subscription
	OnTypingUpdate(h router.TypingHandler) *router.Subscription
	OnPresenceUpdate(h router.PresenceHandler) *router.Subscription
	OnReadUpdate(h router.ReadHandler) *router.Subscription
}

// StatusSource publishes connection state. *connection.Manager satisfies it.
type StatusSource interface {
	Watch(buffer int) (<-chan connection.Status, func())
}

// ChangeKind identifies what changed.
type ChangeKind string

const (
	ChangeSynced   ChangeKind = "synced"
	ChangeMessage  ChangeKind = "message"
	ChangeTyping   ChangeKind = "typing"
	ChangePresence ChangeKind = "presence"
	ChangeRead     ChangeKind = "read"
	ChangeUnread   ChangeKind = "unread"
)

// Change describes one inbox update.
type Change struct {
	Kind     ChangeKind
	ChatID   string         // empty for synced, presence and unread
	UserID   string         // typing, presence and read
	Message  *model.Message // message only
	IsTyping bool
	IsOnline bool
}
