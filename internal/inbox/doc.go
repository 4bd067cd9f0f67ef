// Package inbox implements the Inbox component.
//
// The Inbox:
//   - Loads chats and unread counters via REST API on startup
//   - Receives live updates from the event router
//   - Maintains in-memory chat list, typing indicators and presence
//   - Re-synchronises after the realtime connection comes back
//   - Notifies the UI layer of changes
package inbox
