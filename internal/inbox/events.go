package inbox

import (
	"github.com/karmaloop/chatcore/internal/model"
)

// onMessage records a delivered message as its chat's latest.
func (i *inboxImpl) onMessage(chatID string, msg model.Message) {
	self := i.selfID()
	if msg.ChatID == "" {
		msg.ChatID = chatID
	}

	s := i.state
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		// Chat opened by the peer since the last sync.
		participants := []string{msg.SenderID}
		if self != "" && self != msg.SenderID {
			participants = append(participants, self)
		}
		c = &model.Chat{
			ID:             chatID,
			ParticipantIDs: participants,
			CreatedAt:      msg.CreatedAt,
			UpdatedAt:      msg.CreatedAt,
		}
		s.chats[chatID] = c
	}

	duplicate := c.LastMessage != nil && c.LastMessage.ID == msg.ID
	if c.LastMessage == nil || !msg.CreatedAt.Before(c.LastMessage.CreatedAt) {
		m := msg
		c.LastMessage = &m
	}
	if msg.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.CreatedAt
	}
	if !duplicate && !msg.IsRead && msg.SenderID != self {
		s.addUnreadLocked(chatID, 1)
	}
	s.setTypingLocked(chatID, msg.SenderID, false, i.now())
	s.mu.Unlock()

	s.notifyChange(Change{Kind: ChangeMessage, ChatID: chatID, UserID: msg.SenderID, Message: &msg})
}

// onTyping records a peer's typing indicator.
func (i *inboxImpl) onTyping(chatID, userID string, isTyping bool) {
	if userID == i.selfID() {
		return
	}

	i.state.mu.Lock()
	i.state.setTypingLocked(chatID, userID, isTyping, i.now())
	i.state.mu.Unlock()

	i.state.notifyChange(Change{Kind: ChangeTyping, ChatID: chatID, UserID: userID, IsTyping: isTyping})
}

// onPresence records a user's online status.
func (i *inboxImpl) onPresence(userID string, isOnline bool) {
	i.state.mu.Lock()
	i.state.presence[userID] = model.Presence{
		UserID:    userID,
		IsOnline:  isOnline,
		UpdatedAt: i.now().UTC(),
	}
	i.state.mu.Unlock()

	i.state.notifyChange(Change{Kind: ChangePresence, UserID: userID, IsOnline: isOnline})
}

// onRead applies a read receipt. A receipt from the local user (another
// device) clears the chat's unread counter.
func (i *inboxImpl) onRead(chatID, userID, messageID string) {
	self := i.selfID()

	s := i.state
	s.mu.Lock()
	if c, ok := s.chats[chatID]; ok && c.LastMessage != nil {
		last := c.LastMessage
		if (messageID == "" || last.ID == messageID) && last.SenderID != userID {
			read := last.MarkRead(i.now())
			c.LastMessage = &read
		}
	}
	if self != "" && userID == self {
		s.addUnreadLocked(chatID, -s.unread.ByChat[chatID])
	}
	s.mu.Unlock()

	s.notifyChange(Change{Kind: ChangeRead, ChatID: chatID, UserID: userID})
}
