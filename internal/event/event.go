package event

import (
	"time"

	"github.com/karmaloop/chatcore/internal/model"
)

// Kind is the event tag carried in the envelope's "event" field.
type Kind string

const (
	KindConnect     Kind = "connect"
	KindDisconnect  Kind = "disconnect"
	KindNewMessage  Kind = "new_message"
	KindMessageRead Kind = "message_read"
	KindTypingStart Kind = "typing_start"
	KindTypingStop  Kind = "typing_stop"
	KindPresence    Kind = "presence"
	KindJoinChat    Kind = "join_chat"
	KindLeaveChat   Kind = "leave_chat"
	KindError       Kind = "error"
)

// Valid reports whether k is one of the known tags.
func (k Kind) Valid() bool {
	switch k {
	case KindConnect, KindDisconnect, KindNewMessage, KindMessageRead,
		KindTypingStart, KindTypingStop, KindPresence,
		KindJoinChat, KindLeaveChat, KindError:
		return true
	}
	return false
}

// Ephemeral reports whether losing an event of this kind is harmless.
// Typing and presence are superseded by the next update.
func (k Kind) Ephemeral() bool {
	switch k {
	case KindTypingStart, KindTypingStop, KindPresence:
		return true
	}
	return false
}

// Payload carries the optional fields of an event. Unset strings are "".
type Payload struct {
	ChatID    string
	UserID    string
	MessageID string
	Content   string
	IsTyping  *bool
	IsOnline  *bool
	Message   *model.Message
}

// Event is a single tagged message on the socket.
// Events are values; build them with the constructors below and do not modify them.
type Event struct {
	Kind      Kind
	Payload   Payload
	Timestamp time.Time
}

func newEvent(kind Kind, p Payload) Event {
	return Event{Kind: kind, Payload: p, Timestamp: time.Now().UTC()}
}

// At returns a copy of e stamped with t.
func (e Event) At(t time.Time) Event {
	e.Timestamp = t.UTC()
	return e
}

// ChatID returns the chat an event refers to, falling back to the embedded message.
func (e Event) ChatID() string {
	if e.Payload.ChatID != "" {
		return e.Payload.ChatID
	}
	if e.Payload.Message != nil {
		return e.Payload.Message.ChatID
	}
	return ""
}

// Connect announces a session for userID.
func Connect(userID string) Event {
	return newEvent(KindConnect, Payload{UserID: userID})
}

// Disconnect announces the end of userID's session.
func Disconnect(userID string) Event {
	return newEvent(KindDisconnect, Payload{UserID: userID})
}

// JoinChat subscribes the session to a chat's events.
func JoinChat(chatID string) Event {
	return newEvent(KindJoinChat, Payload{ChatID: chatID})
}

// LeaveChat unsubscribes the session from a chat's events.
func LeaveChat(chatID string) Event {
	return newEvent(KindLeaveChat, Payload{ChatID: chatID})
}

// SendMessage is the outbound form of a new chat message.
func SendMessage(chatID, content string) Event {
	return newEvent(KindNewMessage, Payload{ChatID: chatID, Content: content})
}

// NewMessage is the inbound form carrying the server's message copy.
func NewMessage(msg model.Message) Event {
	m := msg
	return newEvent(KindNewMessage, Payload{ChatID: msg.ChatID, Message: &m})
}

// Typing builds a typing_start or typing_stop event.
func Typing(chatID, userID string, isTyping bool) Event {
	kind := KindTypingStop
	if isTyping {
		kind = KindTypingStart
	}
	return newEvent(kind, Payload{ChatID: chatID, UserID: userID, IsTyping: &isTyping})
}

// MessageRead is a read receipt for messageID in chatID by userID.
func MessageRead(chatID, userID, messageID string) Event {
	return newEvent(KindMessageRead, Payload{ChatID: chatID, UserID: userID, MessageID: messageID})
}

// Presence reports userID going online or offline.
func Presence(userID string, isOnline bool) Event {
	return newEvent(KindPresence, Payload{UserID: userID, IsOnline: &isOnline})
}

// Error is a server-reported protocol error.
func Error(content string) Event {
	return newEvent(KindError, Payload{Content: content})
}
