package router

import "github.com/karmaloop/chatcore/internal/model"

// Config holds configuration for the Event Router.
type Config struct {
	QueueSize int // Initial queue capacity (grows on demand). Default: 256
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize: 256,
	}
}

// MessageHandler receives new chat messages.
type MessageHandler func(chatID string, msg model.Message)

// TypingHandler receives typing indicator changes.
type TypingHandler func(chatID, userID string, isTyping bool)

// PresenceHandler receives online/offline changes.
type PresenceHandler func(userID string, isOnline bool)

// ReadHandler receives read receipts.
type ReadHandler func(chatID, userID, messageID string)

// Stats contains runtime statistics.
type Stats struct {
	Received    int64 // Events taken off the queue or passed to Dispatch
	Dispatched  int64 // Handler invocations
	Bookkeeping int64 // connect/disconnect/join/leave events
	Errors      int64 // Server error events
	Invalid     int64 // Events missing required fields
	Unknown     int64 // Unrecognised tags
	Panics      int64 // Handler panics recovered
	Queue       BufferStats
}
