package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// SocketPath is the fixed path of the realtime endpoint.
const SocketPath = "/socket"

// BuildEndpoint derives the socket URL from the REST base URL.
// http maps to ws and https to wss; ws and wss are accepted as given.
func BuildEndpoint(baseURL, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user ID", ErrInvalidEndpoint)
	}

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidEndpoint, baseURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	u.Path = SocketPath
	u.RawPath = ""
	u.Fragment = ""
	u.User = nil
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	return u.String(), nil
}
