package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karmaloop/chatcore/internal/auth"
	"github.com/karmaloop/chatcore/internal/model"
	"github.com/karmaloop/chatcore/internal/version"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/", auth.StaticToken("test-key"))

		if c.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com")
		}
		if c.tokens == nil {
			t.Error("tokens should be set")
		}
		if c.userAgent != version.UserAgent() {
			t.Errorf("userAgent = %q, want %q", c.userAgent, version.UserAgent())
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 0)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithRetries(5, 2*time.Second))
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", nil, WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", nil, WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com", auth.StaticToken("key"),
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
		if c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 500*time.Millisecond)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("with user agent option", func(t *testing.T) {
		c := NewClient("https://api.example.com", nil, WithUserAgent("tester/1"))
		if c.userAgent != "tester/1" {
			t.Errorf("userAgent = %q, want %q", c.userAgent, "tester/1")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{
			StatusCode: 404,
			Message:    "Not Found",
			Body:       []byte(`{"error": "chat not found"}`),
		}
		expected := "chat api error 404: Not Found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable for 5xx errors", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{504, true},
			{429, true},
			{400, false},
			{401, false},
			{403, false},
			{404, false},
			{200, false},
			{499, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Authorization header = %q, want %q", r.Header.Get("Authorization"), "Bearer test-key")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("test-key"))
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("request without token source", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("Authorization header should be empty, got %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("request with query parameters", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "10" {
				t.Errorf("limit = %q, want %q", r.URL.Query().Get("limit"), "10")
			}
			if r.URL.Query().Get("cursor") != "abc123" {
				t.Errorf("cursor = %q, want %q", r.URL.Query().Get("cursor"), "abc123")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"))
		query := make(map[string][]string)
		query["limit"] = []string{"10"}
		query["cursor"] = []string{"abc123"}
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", query, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("4xx error returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"))
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 404)
		}
		if !strings.Contains(string(apiErr.Body), "not found") {
			t.Errorf("Body should contain 'not found', got %q", string(apiErr.Body))
		}
	})

	t.Run("5xx error returns APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"))
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 500 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 500)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("succeeds on first try", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`error`))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`rate limited`))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry on 4xx (except 429)", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`bad request`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`error`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		// 1 initial + 2 retries = 3 attempts
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"), WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context") {
			t.Errorf("error should be context-related, got %v", err)
		}
	})
}

// TestAPIErrorMessage tests message extraction from error bodies.
func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", 400, `{"message": "content too long"}`, "content too long"},
		{"error field", 404, `{"error": "chat not found"}`, "chat not found"},
		{"message wins", 409, `{"error": "conflict", "message": "chat exists"}`, "chat exists"},
		{"plain text", 502, `bad gateway`, "Bad Gateway"},
		{"empty body", 503, ``, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(tt.status, []byte(tt.body))
			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}

	for code, want := range map[int]bool{401: true, 403: true, 404: false, 500: false} {
		if got := (&APIError{StatusCode: code}).IsUnauthorized(); got != want {
			t.Errorf("IsUnauthorized() for status %d = %v, want %v", code, got, want)
		}
	}
}

// TestDoRequestBodyAndHeaders tests JSON bodies and per-request headers.
func TestDoRequestBodyAndHeaders(t *testing.T) {
	t.Run("JSON body and user agent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
			}
			if r.Header.Get("User-Agent") != "tester/1" {
				t.Errorf("User-Agent = %q, want tester/1", r.Header.Get("User-Agent"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"is_typing":true}` {
				t.Errorf("body = %s", body)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, WithUserAgent("tester/1"))
		_, err := c.doRequest(context.Background(), http.MethodPut, "/test", nil, TypingRequest{IsTyping: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("token fetched per request", func(t *testing.T) {
		var issued int32
		tokens := auth.TokenFunc(func(ctx context.Context) (string, error) {
			n := atomic.AddInt32(&issued, 1)
			return "tok-" + string(rune('0'+n)), nil
		})

		var seen []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.Header.Get("Authorization"))
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, tokens)
		for i := 0; i < 2; i++ {
			if _, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if len(seen) != 2 || seen[0] != "Bearer tok-1" || seen[1] != "Bearer tok-2" {
			t.Errorf("Authorization headers = %v", seen)
		}
	})

	t.Run("token failure aborts request", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken(""))
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if !errors.Is(err, auth.ErrNoToken) {
			t.Errorf("error = %v, want ErrNoToken", err)
		}
		if hits != 0 {
			t.Errorf("server hits = %d, want 0", hits)
		}
	})
}

// TestDoWithRetryWrites tests that only reads are retried.
func TestDoWithRetryWrites(t *testing.T) {
	t.Run("POST is attempted once", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodPost, "/test", nil, SendMessageRequest{ChatID: "c1"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
			t.Errorf("error = %v, want *APIError 503", err)
		}
	})

	t.Run("no retries by default", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if strings.Contains(err.Error(), "max retries") {
			t.Errorf("error should not mention retries, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})
}

const (
	chatJSON = `{"id": "c1", "participant_ids": ["u1", "u2"], "unread_count": 2,
		"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-02T10:00:00.5Z",
		"last_message": {"id": "m9", "sender_id": "u2", "content": "see you", "is_read": false,
			"created_at": "2026-01-02T10:00:00Z"}}`
	messageJSON = `{"id": "m1", "chat_id": "c1", "sender_id": "u1", "content": "hello",
		"attachments": [{"url": "https://cdn.example.com/a.png", "name": "a.png", "mime_type": "image/png", "size": 42}],
		"is_read": true, "read_at": "2026-01-02T10:05:00Z", "created_at": "2026-01-02T10:00:00Z"}`
)

// TestGetChats tests the GetChats method.
func TestGetChats(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/chats" {
				t.Errorf("request = %s %s, want GET /chats", r.Method, r.URL.Path)
			}
			w.Write([]byte(`[` + chatJSON + `]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("key"))
		chats, err := c.GetChats(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chats) != 1 {
			t.Fatalf("len(chats) = %d, want 1", len(chats))
		}

		chat := chats[0]
		if chat.ID != "c1" || chat.UnreadCount != 2 {
			t.Errorf("chat = %+v", chat)
		}
		if chat.Peer("u1") != "u2" {
			t.Errorf("Peer(u1) = %q, want u2", chat.Peer("u1"))
		}
		if chat.LastMessage == nil || chat.LastMessage.Content != "see you" {
			t.Fatalf("LastMessage = %+v", chat.LastMessage)
		}
		if chat.LastMessage.ChatID != "c1" {
			t.Errorf("LastMessage.ChatID = %q, want c1", chat.LastMessage.ChatID)
		}
		want := time.Date(2026, 1, 2, 10, 0, 0, 500_000_000, time.UTC)
		if !chat.UpdatedAt.Equal(want) {
			t.Errorf("UpdatedAt = %v, want %v", chat.UpdatedAt, want)
		}
	})

	t.Run("wrapped list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chats": [` + chatJSON + `, ` + chatJSON + `]}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		chats, err := c.GetChats(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chats) != 2 {
			t.Errorf("len(chats) = %d, want 2", len(chats))
		}
	})

	t.Run("empty", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chats": null}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		chats, err := c.GetChats(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chats) != 0 {
			t.Errorf("len(chats) = %d, want 0", len(chats))
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id": "c1", "created_at": "yesterday"}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		if _, err := c.GetChats(context.Background()); err == nil {
			t.Error("expected error for bad timestamp")
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "token expired"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, auth.StaticToken("old"))
		_, err := c.GetChats(context.Background())

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if !apiErr.IsUnauthorized() || apiErr.Message != "token expired" {
			t.Errorf("apiErr = %+v", apiErr)
		}
	})
}

// TestGetChat tests the GetChat method.
func TestGetChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/chats/c%2F1" && r.URL.Path != "/chats/c1" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		w.Write([]byte(chatJSON))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	chat, err := c.GetChat(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.ID != "c1" || len(chat.ParticipantIDs) != 2 {
		t.Errorf("chat = %+v", chat)
	}

	if _, err := c.GetChat(context.Background(), "c/1"); err != nil {
		t.Errorf("escaped id: unexpected error: %v", err)
	}

	if _, err := c.GetChat(context.Background(), " "); err == nil {
		t.Error("expected error for blank chat id")
	}
}

// TestGetMessages tests the GetMessages method.
func TestGetMessages(t *testing.T) {
	t.Run("pagination query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chats/c1/messages" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("limit = %q, want 50", r.URL.Query().Get("limit"))
			}
			if r.URL.Query().Get("offset") != "100" {
				t.Errorf("offset = %q, want 100", r.URL.Query().Get("offset"))
			}
			w.Write([]byte(`{"messages": [` + messageJSON + `]}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		msgs, err := c.GetMessages(context.Background(), "c1", GetMessagesOptions{Limit: 50, Offset: 100})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("len(msgs) = %d, want 1", len(msgs))
		}

		msg := msgs[0]
		if msg.ID != "m1" || msg.Content != "hello" || !msg.IsRead {
			t.Errorf("msg = %+v", msg)
		}
		if msg.ReadAt == nil || !msg.ReadAt.Equal(time.Date(2026, 1, 2, 10, 5, 0, 0, time.UTC)) {
			t.Errorf("ReadAt = %v", msg.ReadAt)
		}
		if len(msg.Attachments) != 1 || msg.Attachments[0].MimeType != "image/png" || msg.Attachments[0].Size != 42 {
			t.Errorf("Attachments = %+v", msg.Attachments)
		}
	})

	t.Run("defaults omit query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				t.Errorf("RawQuery = %q, want empty", r.URL.RawQuery)
			}
			w.Write([]byte(`[{"id": "m2", "sender_id": "u2", "content": "x", "created_at": "2026-01-02T10:00:00Z"}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, nil)
		msgs, err := c.GetMessages(context.Background(), "c7", GetMessagesOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 1 || msgs[0].ChatID != "c7" || msgs[0].ReadAt != nil {
			t.Errorf("msgs = %+v", msgs)
		}
	})
}

// TestCreateChat tests the CreateChat method.
func TestCreateChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chats" {
			t.Errorf("request = %s %s, want POST /chats", r.Method, r.URL.Path)
		}
		var req CreateChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.ParticipantID != "u2" {
			t.Errorf("participant_id = %q, want u2", req.ParticipantID)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"chat": ` + chatJSON + `}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	chat, err := c.CreateChat(context.Background(), "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.ID != "c1" || !chat.HasParticipant("u2") {
		t.Errorf("chat = %+v", chat)
	}

	if _, err := c.CreateChat(context.Background(), ""); err == nil {
		t.Error("expected error for empty participant")
	}
}

// TestSendMessage tests the SendMessage method.
func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chats/messages" {
			t.Errorf("request = %s %s, want POST /chats/messages", r.Method, r.URL.Path)
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if raw["chat_id"] != "c1" || raw["content"] != "hello" {
			t.Errorf("body = %v", raw)
		}
		if atts, ok := raw["attachments"].([]any); !ok || len(atts) != 1 {
			t.Errorf("attachments = %v", raw["attachments"])
		}
		w.Write([]byte(messageJSON))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	msg, err := c.SendMessage(context.Background(), "c1", "hello", []model.Attachment{
		{URL: "https://cdn.example.com/a.png", Name: "a.png", MimeType: "image/png", Size: 42},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "m1" || msg.ChatID != "c1" {
		t.Errorf("msg = %+v", msg)
	}
}

// TestUpdateTypingStatus tests the UpdateTypingStatus method.
func TestUpdateTypingStatus(t *testing.T) {
	var got TypingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/chats/c1/typing" {
			t.Errorf("request = %s %s, want PUT /chats/c1/typing", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	if err := c.UpdateTypingStatus(context.Background(), "c1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsTyping {
		t.Error("is_typing = false, want true")
	}
}

// TestGetUnreadCount tests the GetUnreadCount method.
func TestGetUnreadCount(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTotal int
		wantChats int
	}{
		{"total and breakdown", `{"total": 5, "by_chat": {"c1": 3, "c2": 2}}`, 5, 2},
		{"legacy count", `{"count": 4}`, 4, 0},
		{"breakdown only", `{"by_chat": {"c1": 1, "c2": 6}}`, 7, 2},
		{"empty", `{}`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chats/unread-count" {
					t.Errorf("path = %q", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL, nil)
			counts, err := c.GetUnreadCount(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if counts.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", counts.Total, tt.wantTotal)
			}
			if len(counts.ByChat) != tt.wantChats {
				t.Errorf("len(ByChat) = %d, want %d", len(counts.ByChat), tt.wantChats)
			}
		})
	}
}

// TestJSONUnmarshalErrors tests handling of malformed responses.
func TestJSONUnmarshalErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)

	if _, err := c.GetChats(context.Background()); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("GetChats error = %v, want unmarshal error", err)
	}
	if _, err := c.GetUnreadCount(context.Background()); err == nil {
		t.Error("GetUnreadCount: expected error")
	}
	if _, err := c.GetChat(context.Background(), "c1"); err == nil {
		t.Error("GetChat: expected error")
	}
}
