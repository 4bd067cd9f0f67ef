// Package event defines the tagged events exchanged over the realtime socket
// and the JSON codec used at the transport boundary.
//
// Wire envelope:
//
//	{"event": "new_message", "data": {"chat_id": "...", "message": {...}}, "timestamp": "2024-01-15T12:30:45Z"}
//
// Field names are snake_case on the wire and translated to Go fields by the codec.
// Nothing outside this package sees the wire structs.
package event
