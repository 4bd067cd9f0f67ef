// Package journal records connectivity history to PostgreSQL.
//
// Two append-only tables:
//   - connection_transitions: every state change of the chat session
//   - presence_observations: every presence update seen for a peer
//
// Rows are batched and written with pgx batches, flushed on size or
// interval. Message content is never stored.
package journal
