package event

import "encoding/json"

// envelope is the frame layout on the socket.
type envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// dataWire holds the optional payload fields.
type dataWire struct {
	ChatID    string       `json:"chat_id,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	MessageID string       `json:"message_id,omitempty"`
	Content   string       `json:"content,omitempty"`
	IsTyping  *bool        `json:"is_typing,omitempty"`
	IsOnline  *bool        `json:"is_online,omitempty"`
	Message   *messageWire `json:"message,omitempty"`
}

type messageWire struct {
	ID          string           `json:"id"`
	ChatID      string           `json:"chat_id"`
	SenderID    string           `json:"sender_id"`
	Content     string           `json:"content"`
	Attachments []attachmentWire `json:"attachments,omitempty"`
	IsRead      bool             `json:"is_read"`
	ReadAt      string           `json:"read_at,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

type attachmentWire struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
