package connection

import "errors"

// Errors
var (
	ErrInvalidEndpoint      = errors.New("invalid endpoint")
	ErrTransport            = errors.New("transport failure")
	ErrAuthentication       = errors.New("authentication failed")
	ErrMaxReconnectAttempts = errors.New("max reconnect attempts exceeded")
	ErrNotConnected         = errors.New("not connected")
	ErrClosed               = errors.New("connection manager closed")
	ErrStaleConnection      = errors.New("connection stale (read deadline passed)")
)

// terminal reports whether err must not be retried automatically.
func terminal(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrInvalidEndpoint)
}
