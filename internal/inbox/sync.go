package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/karmaloop/chatcore/internal/connection"
)

// initialSync loads chats and counters on startup.
func (i *inboxImpl) initialSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.InitialSyncTimeout)
	defer cancel()

	i.logger.Info("starting initial inbox sync")
	return i.Resync(ctx)
}

// Resync reloads chats and counters from the REST API. Typing and presence
// are left in place; they only arrive over the realtime stream.
func (i *inboxImpl) Resync(ctx context.Context) error {
	i.syncMu.Lock()
	defer i.syncMu.Unlock()

	start := time.Now()

	chats, err := i.rest.GetChats(ctx)
	if err != nil {
		return fmt.Errorf("sync chats: %w", err)
	}

	counts, err := i.rest.GetUnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("sync unread: %w", err)
	}

	i.state.mu.Lock()
	i.state.replaceChatsLocked(chats)
	i.state.setUnreadLocked(counts)
	i.state.lastSyncAt = i.now()
	i.state.mu.Unlock()

	i.state.notifyChange(Change{Kind: ChangeSynced})

	i.logger.Info("inbox sync complete",
		"chats", len(chats),
		"unread", counts.Total,
		"duration", time.Since(start),
	)

	return nil
}

// reconciliationLoop periodically reloads from the REST API.
func (i *inboxImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(i.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Resync(ctx); err != nil && ctx.Err() == nil {
				i.logger.Error("inbox reconciliation failed", "err", err)
			}
		}
	}
}

// statusLoop resyncs whenever the connection comes back after the first
// session, since events missed while offline are not replayed.
func (i *inboxImpl) statusLoop(ctx context.Context, updates <-chan connection.Status) {
	sawConnected := false

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if st.State != connection.Connected {
				continue
			}

			i.setSelf(st.UserID)

			if sawConnected || i.LastSyncAt().IsZero() {
				i.logger.Info("connection restored, resyncing inbox", "session", st.SessionID)
				if err := i.Resync(ctx); err != nil && ctx.Err() == nil {
					i.logger.Warn("inbox resync failed", "err", err)
				}
			}
			sawConnected = true
		}
	}
}
