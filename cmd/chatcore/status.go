package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/karmaloop/chatcore/internal/connection"
	"github.com/karmaloop/chatcore/internal/inbox"
	"github.com/karmaloop/chatcore/internal/journal"
	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/netpath"
	"github.com/karmaloop/chatcore/internal/poller"
	"github.com/karmaloop/chatcore/internal/version"
)

type sessionView interface {
	State() connection.Status
	Stats() connection.ManagerStats
}

type inboxView interface {
	Chats() []model.Chat
	UnreadCounts() model.UnreadCounts
	TypingUsers(chatID string) []string
	LastSyncAt() time.Time
}

type pollerView interface {
	Stats() poller.Stats
}

type reachabilityView interface {
	Reachable() bool
	Transitions() int64
}

type journalView interface {
	Stats() journal.Metrics
}

type unreadView struct {
	Total  int            `json:"total"`
	ByChat map[string]int `json:"by_chat,omitempty"`
}

// statusDeps holds what the status server reports on. Nil fields are
// reported as disabled.
type statusDeps struct {
	session sessionView
	inbox   inboxView
	poller  pollerView
	network reachabilityView
	journal journalView
}

func newStatusHandler(mgr *connection.Manager, box inbox.Inbox, p *poller.Poller, obs *netpath.Observer, w *journal.Writer) http.Handler {
	deps := statusDeps{session: mgr, inbox: box, poller: p}
	if obs != nil {
		deps.network = obs
	}
	if w != nil {
		deps.journal = w
	}
	return createStatusHandler(deps)
}

// createStatusHandler creates the HTTP handler for /health and /debug/inbox.
func createStatusHandler(deps statusDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		// Session
		st := deps.session.State()
		session := map[string]any{
			"state":   st.State.String(),
			"user_id": st.UserID,
			"attempt": st.Attempt,
			"stats":   deps.session.Stats(),
		}
		if st.Reason != nil {
			session["reason"] = st.Reason.Error()
		}
		health.Components["session"] = session
		switch st.State {
		case connection.Connected:
		case connection.Failed:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		// Inbox
		lastSync := deps.inbox.LastSyncAt()
		inboxStatus := map[string]any{
			"chats":  len(deps.inbox.Chats()),
			"unread": deps.inbox.UnreadCounts().Total,
		}
		if !lastSync.IsZero() {
			inboxStatus["last_sync_at"] = lastSync.UTC().Format(time.RFC3339)
		} else if health.Status == "healthy" {
			health.Status = "degraded"
		}
		health.Components["inbox"] = inboxStatus

		// Poller
		if deps.poller != nil {
			ps := deps.poller.Stats()
			pollerStatus := map[string]any{
				"polls":    ps.Polls,
				"failures": ps.Failures,
			}
			if !ps.LastSuccess.IsZero() {
				pollerStatus["last_success"] = ps.LastSuccess.UTC().Format(time.RFC3339)
			}
			health.Components["unread_poller"] = pollerStatus
		}

		// Network
		if deps.network != nil {
			health.Components["network"] = map[string]any{
				"reachable":   deps.network.Reachable(),
				"transitions": deps.network.Transitions(),
			}
		} else {
			health.Components["network"] = "disabled"
		}

		// Journal
		if deps.journal != nil {
			health.Components["journal"] = deps.journal.Stats()
		} else {
			health.Components["journal"] = "disabled"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/inbox", func(w http.ResponseWriter, r *http.Request) {
		chats := deps.inbox.Chats()
		counts := deps.inbox.UnreadCounts()

		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		total := len(chats)
		if len(chats) > limit {
			chats = chats[:limit]
		}

		type chatView struct {
			ID           string    `json:"id"`
			Participants []string  `json:"participant_ids"`
			Unread       int       `json:"unread_count"`
			LastMessage  string    `json:"last_message_id,omitempty"`
			Typing       []string  `json:"typing,omitempty"`
			UpdatedAt    time.Time `json:"updated_at"`
		}
		out := make([]chatView, 0, len(chats))
		for _, c := range chats {
			v := chatView{
				ID:           c.ID,
				Participants: c.ParticipantIDs,
				Unread:       c.UnreadCount,
				Typing:       deps.inbox.TypingUsers(c.ID),
				UpdatedAt:    c.UpdatedAt,
			}
			if c.LastMessage != nil {
				v.LastMessage = c.LastMessage.ID
			}
			out = append(out, v)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   total,
			"showing": len(out),
			"unread":  unreadView{Total: counts.Total, ByChat: counts.ByChat},
			"chats":   out,
		})
	})

	return mux
}
