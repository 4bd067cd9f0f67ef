package model

import "time"

// -----------------------------------------------------------------------------
// Chat Types
// -----------------------------------------------------------------------------

// Attachment is a file or image referenced by a message.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// Message is a delivery copy of a chat message. The authoritative copy lives server-side.
type Message struct {
	ID          string
	ChatID      string
	SenderID    string
	Content     string
	Attachments []Attachment
	IsRead      bool
	ReadAt      *time.Time // nil until read
	CreatedAt   time.Time
}

// MarkRead returns a copy of m flagged as read at the given time.
// Already-read messages keep their original ReadAt.
func (m Message) MarkRead(at time.Time) Message {
	if m.IsRead && m.ReadAt != nil {
		return m
	}
	readAt := at.UTC()
	m.IsRead = true
	m.ReadAt = &readAt
	return m
}

// Chat is a pairwise conversation between two matched users.
type Chat struct {
	ID             string
	ParticipantIDs []string
	LastMessage    *Message // nil for a chat without messages
	UnreadCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Peer returns the participant that is not userID, or "" if userID is not a participant.
func (c Chat) Peer(userID string) string {
	found := false
	peer := ""
	for _, id := range c.ParticipantIDs {
		if id == userID {
			found = true
			continue
		}
		peer = id
	}
	if !found {
		return ""
	}
	return peer
}

// HasParticipant reports whether userID takes part in the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Derived State
// -----------------------------------------------------------------------------

// UnreadCounts is the unread message count per chat plus the server-reported total.
type UnreadCounts struct {
	Total  int
	ByChat map[string]int
}

// Sum returns the sum of the per-chat counts.
func (u UnreadCounts) Sum() int {
	total := 0
	for _, n := range u.ByChat {
		total += n
	}
	return total
}

// Presence is a user's last known online status.
type Presence struct {
	UserID    string
	IsOnline  bool
	UpdatedAt time.Time
}
