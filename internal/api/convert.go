package api

import (
	"fmt"

	"github.com/karmaloop/chatcore/internal/model"
)

// ToModel converts an APIMessage to model.Message.
func (m *APIMessage) ToModel() (model.Message, error) {
	created, err := model.ParseTime(m.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s created_at: %w", m.ID, err)
	}

	msg := model.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		IsRead:    m.IsRead,
		CreatedAt: created,
	}

	if m.ReadAt != "" {
		readAt, err := model.ParseTime(m.ReadAt)
		if err != nil {
			return model.Message{}, fmt.Errorf("message %s read_at: %w", m.ID, err)
		}
		msg.ReadAt = &readAt
	}

	if len(m.Attachments) > 0 {
		msg.Attachments = make([]model.Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			msg.Attachments[i] = model.Attachment{
				URL:      a.URL,
				Name:     a.Name,
				MimeType: a.MimeType,
				Size:     a.Size,
			}
		}
	}

	return msg, nil
}

// ToModel converts an APIChat to model.Chat.
func (c *APIChat) ToModel() (model.Chat, error) {
	created, err := model.ParseTime(c.CreatedAt)
	if err != nil {
		return model.Chat{}, fmt.Errorf("chat %s created_at: %w", c.ID, err)
	}
	updated, err := model.ParseTime(c.UpdatedAt)
	if err != nil {
		return model.Chat{}, fmt.Errorf("chat %s updated_at: %w", c.ID, err)
	}

	chat := model.Chat{
		ID:             c.ID,
		ParticipantIDs: append([]string(nil), c.ParticipantIDs...),
		UnreadCount:    c.UnreadCount,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}

	if c.LastMessage != nil {
		last, err := c.LastMessage.ToModel()
		if err != nil {
			return model.Chat{}, err
		}
		if last.ChatID == "" {
			last.ChatID = c.ID
		}
		chat.LastMessage = &last
	}

	return chat, nil
}

// ToModel converts the unread response, deriving the total when only the
// per-chat breakdown is present.
func (u *UnreadCountResponse) ToModel() model.UnreadCounts {
	counts := model.UnreadCounts{ByChat: make(map[string]int, len(u.ByChat))}
	for id, n := range u.ByChat {
		counts.ByChat[id] = n
	}

	switch {
	case u.Total != nil:
		counts.Total = *u.Total
	case u.Count != nil:
		counts.Total = *u.Count
	default:
		counts.Total = counts.Sum()
	}
	return counts
}

func attachmentsToAPI(in []model.Attachment) []APIAttachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]APIAttachment, len(in))
	for i, a := range in {
		out[i] = APIAttachment{URL: a.URL, Name: a.Name, MimeType: a.MimeType, Size: a.Size}
	}
	return out
}
