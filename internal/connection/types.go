package connection

import (
	"time"

	"github.com/karmaloop/chatcore/internal/event"
)

// SendPolicy decides what happens to a chat message sent while not Connected.
type SendPolicy string

const (
	// SendDrop silently drops the message, like every other outbound event.
	SendDrop SendPolicy = "drop"
	// SendReject makes SendMessage wait for the worker and return ErrNotConnected.
	SendReject SendPolicy = "reject"
)

// Sink receives decoded inbound events in wire order.
// router.Router satisfies it.
type Sink interface {
	Submit(ev event.Event) bool
}

// ClientConfig configures the websocket transport.
type ClientConfig struct {
	HandshakeTimeout time.Duration // Max time for the HTTP upgrade
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without any inbound frame or pong before the socket is stale
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size in bytes (0 = unlimited)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	BaseURL         string          // REST base URL; the socket URL is derived from it
	Reconnect       ReconnectPolicy // Backoff bounds
	SendPolicy      SendPolicy      // Message send while disconnected. Default: drop
	RearmOnRecovery bool            // Network recovery restarts retries after exhaustion. Default: true
	RearmOnResume   bool            // Resume() restarts retries after exhaustion. Default: false
	CommandBuffer   int             // Worker mailbox size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Reconnect:       DefaultReconnectPolicy(),
		SendPolicy:      SendDrop,
		RearmOnRecovery: true,
		CommandBuffer:   256,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	FramesRead     int64 // Inbound frames decoded and handed to the sink
	DecodeErrors   int64 // Inbound frames dropped as malformed
	FramesSent     int64 // Outbound frames written
	SendsDropped   int64 // Outbound events dropped while not Connected
	Dials          int64 // Handshakes attempted
	SessionsOpened int64 // Successful handshakes
}
