package api

import (
	"bytes"
	"encoding/json"
)

// APIAttachment is a file attached to a message.
type APIAttachment struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// APIMessage is a message as returned by the API.
type APIMessage struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	SenderID    string          `json:"sender_id"`
	Content     string          `json:"content"`
	Attachments []APIAttachment `json:"attachments,omitempty"`
	IsRead      bool            `json:"is_read"`
	ReadAt      string          `json:"read_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// APIChat is a pairwise chat as returned by the API.
type APIChat struct {
	ID             string      `json:"id"`
	ParticipantIDs []string    `json:"participant_ids"`
	LastMessage    *APIMessage `json:"last_message,omitempty"`
	UnreadCount    int         `json:"unread_count"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
}

// UnreadCountResponse from GET /chats/unread-count.
// Older servers send only "count".
type UnreadCountResponse struct {
	Total  *int           `json:"total,omitempty"`
	Count  *int           `json:"count,omitempty"`
	ByChat map[string]int `json:"by_chat,omitempty"`
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	ParticipantID string `json:"participant_id"`
}

// SendMessageRequest is the body of POST /chats/messages.
type SendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	Content     string          `json:"content"`
	Attachments []APIAttachment `json:"attachments,omitempty"`
}

// TypingRequest is the body of PUT /chats/{id}/typing.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// GetMessagesOptions configures a GetMessages request.
type GetMessagesOptions struct {
	Limit  int
	Offset int
}

// list decodes either a bare JSON array or an object holding the array
// under key (or "data").
type list[T any] struct {
	key   string
	items []T
}

func (l *list[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.items)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}

	raw, ok := obj[l.key]
	if !ok {
		raw = obj["data"]
	}
	if len(raw) == 0 || string(raw) == "null" {
		l.items = nil
		return nil
	}
	return json.Unmarshal(raw, &l.items)
}

// single decodes either a bare object or one wrapped under key (or "data").
type single[T any] struct {
	key  string
	item T
}

func (s *single[T]) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}

	for _, k := range []string{s.key, "data"} {
		if raw, ok := obj[k]; ok && len(raw) > 0 && raw[0] == '{' {
			return json.Unmarshal(raw, &s.item)
		}
	}
	return json.Unmarshal(b, &s.item)
}
