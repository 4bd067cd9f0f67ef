// Package connection owns the realtime chat session.
//
// The Manager:
//   - Holds at most one live socket per signed-in user
//   - Serialises connect, disconnect, send and failures on one worker goroutine
//   - Publishes ConnectionState through a StateCell readable from any goroutine
//   - Retries transport failures with bounded exponential backoff
//   - Feeds decoded inbound events to the router in wire order
package connection
