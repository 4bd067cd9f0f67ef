// Package model defines the chat types shared by the realtime core and the REST client.
//
// Conventions:
//   - IDs are opaque strings issued by the backend
//   - Timestamps are time.Time in UTC; the wire carries ISO-8601
//   - Chats are pairwise: exactly two participants
package model
