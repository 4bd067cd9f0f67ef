// Package router implements the Event Router.
//
// The Event Router:
//   - Receives decoded events from the connection read loop through an unbounded FIFO queue
//   - Dispatches them on a single goroutine, so handlers see wire arrival order
//   - Fans out by category to handlers in registration order
//   - Treats connect/disconnect/join/leave as bookkeeping and logs server errors
package router
