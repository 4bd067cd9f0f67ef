package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/karmaloop/chatcore/internal/model"
)

// GetChats returns every chat the authenticated user takes part in.
func (c *Client) GetChats(ctx context.Context) ([]model.Chat, error) {
	resp := list[APIChat]{key: "chats"}
	if err := c.call(ctx, http.MethodGet, "/chats", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get chats: %w", err)
	}

	chats := make([]model.Chat, 0, len(resp.items))
	for i := range resp.items {
		chat, err := resp.items[i].ToModel()
		if err != nil {
			return nil, fmt.Errorf("get chats: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// GetChat returns a single chat by ID.
func (c *Client) GetChat(ctx context.Context, chatID string) (model.Chat, error) {
	if err := requireID("chat id", chatID); err != nil {
		return model.Chat{}, fmt.Errorf("get chat: %w", err)
	}

	resp := single[APIChat]{key: "chat"}
	if err := c.call(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID), nil, nil, &resp); err != nil {
		return model.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}

	chat, err := resp.item.ToModel()
	if err != nil {
		return model.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return chat, nil
}

// GetMessages returns a page of a chat's history. Zero limit or offset
// leaves the server default in place.
func (c *Client) GetMessages(ctx context.Context, chatID string, opts GetMessagesOptions) ([]model.Message, error) {
	if err := requireID("chat id", chatID); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	resp := list[APIMessage]{key: "messages"}
	path := "/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.call(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get messages %s: %w", chatID, err)
	}

	msgs := make([]model.Message, 0, len(resp.items))
	for i := range resp.items {
		msg, err := resp.items[i].ToModel()
		if err != nil {
			return nil, fmt.Errorf("get messages %s: %w", chatID, err)
		}
		if msg.ChatID == "" {
			msg.ChatID = chatID
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// CreateChat opens a chat with participantID, or returns the existing one.
func (c *Client) CreateChat(ctx context.Context, participantID string) (model.Chat, error) {
	if err := requireID("participant id", participantID); err != nil {
		return model.Chat{}, fmt.Errorf("create chat: %w", err)
	}

	resp := single[APIChat]{key: "chat"}
	req := CreateChatRequest{ParticipantID: participantID}
	if err := c.call(ctx, http.MethodPost, "/chats", nil, req, &resp); err != nil {
		return model.Chat{}, fmt.Errorf("create chat: %w", err)
	}

	chat, err := resp.item.ToModel()
	if err != nil {
		return model.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// SendMessage posts a message through the request/response path and returns
// the server's copy.
func (c *Client) SendMessage(ctx context.Context, chatID, content string, attachments []model.Attachment) (model.Message, error) {
	if err := requireID("chat id", chatID); err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}

	resp := single[APIMessage]{key: "message"}
	req := SendMessageRequest{
		ChatID:      chatID,
		Content:     content,
		Attachments: attachmentsToAPI(attachments),
	}
	if err := c.call(ctx, http.MethodPost, "/chats/messages", nil, req, &resp); err != nil {
		return model.Message{}, fmt.Errorf("send message %s: %w", chatID, err)
	}

	msg, err := resp.item.ToModel()
	if err != nil {
		return model.Message{}, fmt.Errorf("send message %s: %w", chatID, err)
	}
	if msg.ChatID == "" {
		msg.ChatID = chatID
	}
	return msg, nil
}

// UpdateTypingStatus sets the caller's typing indicator over REST.
func (c *Client) UpdateTypingStatus(ctx context.Context, chatID string, isTyping bool) error {
	if err := requireID("chat id", chatID); err != nil {
		return fmt.Errorf("update typing: %w", err)
	}

	path := "/chats/" + url.PathEscape(chatID) + "/typing"
	if err := c.call(ctx, http.MethodPut, path, nil, TypingRequest{IsTyping: isTyping}, nil); err != nil {
		return fmt.Errorf("update typing %s: %w", chatID, err)
	}
	return nil
}

// GetUnreadCount returns the unread totals across all chats.
func (c *Client) GetUnreadCount(ctx context.Context) (model.UnreadCounts, error) {
	var resp UnreadCountResponse
	if err := c.call(ctx, http.MethodGet, "/chats/unread-count", nil, nil, &resp); err != nil {
		return model.UnreadCounts{}, fmt.Errorf("get unread count: %w", err)
	}
	return resp.ToModel(), nil
}

func requireID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
