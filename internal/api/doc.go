// Package api is the request/response client for chat history.
//
// Endpoints (relative to the configured base URL):
//   - GET  /chats                          chat list
//   - GET  /chats/{id}                     one chat
//   - GET  /chats/{id}/messages            message backlog (limit, offset)
//   - POST /chats                          open a chat with a participant
//   - POST /chats/messages                 send a message
//   - PUT  /chats/{id}/typing              typing status fallback
//   - GET  /chats/unread-count             unread counters
//
// Requests carry a fresh bearer token. JSON is snake_case; dates are ISO 8601.
package api
