package inbox

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/karmaloop/chatcore/internal/model"
)

// inboxState holds the thread-safe chat cache.
type inboxState struct {
	mu sync.RWMutex

	// All known chats indexed by ID.
	chats map[string]*model.Chat

	// Unread counters as last reported by the server, adjusted locally.
	unread model.UnreadCounts

	// Typing users per chat with the time the indicator was last set.
	typing map[string]map[string]time.Time

	// Presence per user.
	presence map[string]model.Presence

	// Last successful REST sync timestamp.
	lastSyncAt time.Time

	// Output channel for the UI layer.
	changes chan Change
}

func newState() *inboxState {
	return &inboxState{
		chats:    make(map[string]*model.Chat),
		unread:   model.UnreadCounts{ByChat: make(map[string]int)},
		typing:   make(map[string]map[string]time.Time),
		presence: make(map[string]model.Presence),
		changes:  make(chan Change, ChangeBufferSize),
	}
}

// getChat returns a chat by ID (read-locked).
func (s *inboxState) getChat(chatID string) (model.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return model.Chat{}, false
	}
	return copyChat(c), true
}

// getChats returns copies of all chats, most recently updated first (read-locked).
func (s *inboxState) getChats() []model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		result = append(result, copyChat(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// getUnread returns a copy of the unread counters (read-locked).
func (s *inboxState) getUnread() model.UnreadCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := model.UnreadCounts{Total: s.unread.Total, ByChat: make(map[string]int, len(s.unread.ByChat))}
	for id, n := range s.unread.ByChat {
		out.ByChat[id] = n
	}
	return out
}

// typingUsers returns users typing in chatID whose indicator is newer than
// cutoff, sorted (read-locked).
func (s *inboxState) typingUsers(chatID string, cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []string
	for userID, at := range s.typing[chatID] {
		if at.After(cutoff) {
			users = append(users, userID)
		}
	}
	slices.Sort(users)
	return users
}

// replaceChatsLocked swaps in a fresh chat list (caller must hold write lock).
// Typing and presence survive a sync.
func (s *inboxState) replaceChatsLocked(chats []model.Chat) {
	s.chats = make(map[string]*model.Chat, len(chats))
	for _, c := range chats {
		s.upsertChatLocked(c)
	}
}

// upsertChatLocked adds or updates a chat (caller must hold write lock).
func (s *inboxState) upsertChatLocked(c model.Chat) {
	cCopy := copyChat(&c)
	s.chats[c.ID] = &cCopy
}

// setUnreadLocked replaces the counters and mirrors them onto chats
// (caller must hold write lock).
func (s *inboxState) setUnreadLocked(counts model.UnreadCounts) {
	s.unread = model.UnreadCounts{Total: counts.Total, ByChat: make(map[string]int, len(counts.ByChat))}
	for id, n := range counts.ByChat {
		s.unread.ByChat[id] = n
	}

	// A per-chat breakdown is authoritative for every chat it covers.
	if len(counts.ByChat) == 0 {
		return
	}
	for id, c := range s.chats {
		c.UnreadCount = counts.ByChat[id]
	}
}

// addUnreadLocked adjusts one chat's counter by delta, clamping at zero
// (caller must hold write lock).
func (s *inboxState) addUnreadLocked(chatID string, delta int) {
	before := s.unread.ByChat[chatID]
	after := max(before+delta, 0)
	if after == 0 {
		delete(s.unread.ByChat, chatID)
	} else {
		s.unread.ByChat[chatID] = after
	}
	s.unread.Total = max(s.unread.Total+after-before, 0)

	if c, ok := s.chats[chatID]; ok {
		c.UnreadCount = after
	}
}

// setTypingLocked records or clears a typing indicator (caller must hold write lock).
func (s *inboxState) setTypingLocked(chatID, userID string, isTyping bool, at time.Time) {
	if !isTyping {
		if users, ok := s.typing[chatID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(s.typing, chatID)
			}
		}
		return
	}

	users, ok := s.typing[chatID]
	if !ok {
		users = make(map[string]time.Time)
		s.typing[chatID] = users
	}
	users[userID] = at
}

// notifyChange sends a change to the changes channel (non-blocking).
func (s *inboxState) notifyChange(change Change) {
	select {
	case s.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- change:
		default:
		}
	}
}

// copyChat returns a deep copy so callers never share slices or pointers
// with the cache.
func copyChat(c *model.Chat) model.Chat {
	out := *c
	out.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	if c.LastMessage != nil {
		last := *c.LastMessage
		last.Attachments = slices.Clone(c.LastMessage.Attachments)
		out.LastMessage = &last
	}
	return out
}
