package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one open duplex socket.
type Transport interface {
	// ReadMessage blocks for the next inbound frame.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame.
	WriteMessage(data []byte) error

	// Close tears the socket down. Safe to call more than once.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Transport, error)
}

// WSDialer opens gorilla websocket transports.
type WSDialer struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewWSDialer creates a websocket dialer.
func NewWSDialer(cfg ClientConfig, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Dial performs the upgrade handshake. A 401 or 403 response is reported as
// ErrAuthentication; every other failure as ErrTransport.
func (d *WSDialer) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrAuthentication, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial: %w", ErrTransport, err)
	}

	t := &wsTransport{
		cfg:    d.cfg,
		logger: d.logger,
		conn:   conn,
		done:   make(chan struct{}),
	}
	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}
	t.extendReadDeadline()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.extendReadDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		t.extendReadDeadline()
		return nil
	})

	if d.cfg.PingInterval > 0 {
		go t.heartbeatLoop()
	}

	d.logger.Debug("websocket connected", "url", redactQuery(url))
	return t, nil
}

// wsTransport implements Transport over a gorilla connection.
type wsTransport struct {
	cfg    ClientConfig
	logger *slog.Logger
	conn   *websocket.Conn

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// ReadMessage returns the next text or binary frame. Any frame counts as liveness.
// A missed read deadline is reported as ErrStaleConnection.
func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w: %w", ErrStaleConnection, err)
		}
		return nil, err
	}
	t.extendReadDeadline()
	return data, nil
}

// WriteMessage writes one text frame under the write deadline.
func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err
}

// extendReadDeadline pushes the stale-connection deadline forward.
func (t *wsTransport) extendReadDeadline() {
	if t.cfg.PingTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.cfg.PingTimeout))
	}
}

// heartbeatLoop keeps NATs and proxies from idling the socket out.
// Staleness itself is detected by the read deadline.
func (t *wsTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			wait := t.cfg.WriteTimeout
			if wait <= 0 {
				wait = time.Second
			}
			deadline := time.Now().Add(wait)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}

// redactQuery strips the query string so user IDs stay out of debug logs.
func redactQuery(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return base
}
