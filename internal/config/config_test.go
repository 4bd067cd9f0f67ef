package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://chat.example.com/api
  max_retries: 2
auth:
  user_id: u-123
  token: static-token
realtime:
  url: wss://rt.example.com
  message_send_policy: reject
  rearm_on_recovery: false
journal:
  enabled: true
  database:
    host: localhost
    port: 5433
    name: chat_journal
    user: journal
    password: journalpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://chat.example.com/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://chat.example.com/api")
	}
	if cfg.API.MaxRetries != 2 {
		t.Errorf("API.MaxRetries = %d, want 2", cfg.API.MaxRetries)
	}
	if cfg.Auth.UserID != "u-123" {
		t.Errorf("Auth.UserID = %q, want %q", cfg.Auth.UserID, "u-123")
	}
	if cfg.Realtime.MessageSendPolicy != "reject" {
		t.Errorf("Realtime.MessageSendPolicy = %q, want reject", cfg.Realtime.MessageSendPolicy)
	}
	if cfg.Realtime.RearmOnRecoveryEnabled() {
		t.Error("RearmOnRecoveryEnabled() = true, want false")
	}
	if cfg.SocketURL() != "wss://rt.example.com" {
		t.Errorf("SocketURL() = %q, want realtime.url", cfg.SocketURL())
	}
	if !cfg.Journal.Enabled || cfg.Journal.Database.Port != 5433 {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "dbsecret")

	yaml := `
api:
  base_url: https://chat.example.com
auth:
  user_id: u-1
  token: ${TEST_CHAT_TOKEN}
journal:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Token != "secret123" {
		t.Errorf("Auth.Token = %q, want %q", cfg.Auth.Token, "secret123")
	}
	if cfg.Journal.Database.Password != "dbsecret" {
		t.Errorf("Journal.Database.Password = %q, want %q", cfg.Journal.Database.Password, "dbsecret")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "api: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
api:
  base_url: https://chat.example.com
auth:
  user_id: u-1
  token: tok
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.MaxRetries != 0 {
		t.Errorf("API.MaxRetries = %d, want 0", cfg.API.MaxRetries)
	}
	if cfg.Realtime.ReconnectBaseDelay != time.Second || cfg.Realtime.ReconnectMaxDelay != 30*time.Second {
		t.Errorf("reconnect delays = %v/%v, want 1s/30s", cfg.Realtime.ReconnectBaseDelay, cfg.Realtime.ReconnectMaxDelay)
	}
	if cfg.Realtime.MaxReconnectAttempts != 5 {
		t.Errorf("Realtime.MaxReconnectAttempts = %d, want 5", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Realtime.MessageSendPolicy != "drop" {
		t.Errorf("Realtime.MessageSendPolicy = %q, want drop", cfg.Realtime.MessageSendPolicy)
	}
	if !cfg.Realtime.RearmOnRecoveryEnabled() {
		t.Error("RearmOnRecoveryEnabled() = false, want true when unset")
	}
	if cfg.Realtime.RearmOnResume {
		t.Error("RearmOnResume = true, want false")
	}
	if cfg.Poller.Interval != 30*time.Second {
		t.Errorf("Poller.Interval = %v, want 30s", cfg.Poller.Interval)
	}
	if cfg.Network.Mode != "probe" {
		t.Errorf("Network.Mode = %q, want probe", cfg.Network.Mode)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want default %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.Status.Port != DefaultStatusPort {
		t.Errorf("Status.Port = %d, want default %d", cfg.Status.Port, DefaultStatusPort)
	}
	if cfg.SocketURL() != "https://chat.example.com" {
		t.Errorf("SocketURL() = %q, want api.base_url", cfg.SocketURL())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config should validate: %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "api:\n  base_url: https://chat.example.com\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "auth.user_id is required") {
		t.Errorf("LoadAndValidate() error = %v, want auth.user_id error", err)
	}
}

func validConfig() Config {
	cfg := Config{
		API:  APIConfig{BaseURL: "https://chat.example.com"},
		Auth: AuthConfig{UserID: "u-1", Token: "tok"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "api.base_url is required",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: `api.base_url must be an absolute [http https] URL, got "/api"`,
		},
		{
			name:    "missing user id",
			mutate:  func(c *Config) { c.Auth.UserID = "" },
			wantErr: "auth.user_id is required",
		},
		{
			name:    "missing credentials",
			mutate:  func(c *Config) { c.Auth.Token = "" },
			wantErr: "auth.token or auth.private_key_path is required",
		},
		{
			name: "key file is enough",
			mutate: func(c *Config) {
				c.Auth.Token = ""
				c.Auth.PrivateKeyPath = "/etc/chatcore/key.pem"
			},
			wantErr: "",
		},
		{
			name:    "socket url scheme",
			mutate:  func(c *Config) { c.Realtime.URL = "ftp://rt.example.com" },
			wantErr: `realtime.url must be an absolute [http https ws wss] URL, got "ftp://rt.example.com"`,
		},
		{
			name:    "base delay exceeds max",
			mutate:  func(c *Config) { c.Realtime.ReconnectBaseDelay = time.Minute },
			wantErr: "realtime.reconnect_base_delay (1m0s) cannot exceed reconnect_max_delay (30s)",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Realtime.MaxReconnectAttempts = -1 },
			wantErr: "realtime.max_reconnect_attempts must be >= 1",
		},
		{
			name:    "ping timeout too short",
			mutate:  func(c *Config) { c.Realtime.PingTimeout = 10 * time.Second },
			wantErr: "realtime.ping_timeout (10s) must exceed ping_interval (25s)",
		},
		{
			name:    "unknown send policy",
			mutate:  func(c *Config) { c.Realtime.MessageSendPolicy = "queue" },
			wantErr: `realtime.message_send_policy must be drop or reject, got "queue"`,
		},
		{
			name:    "unknown network mode",
			mutate:  func(c *Config) { c.Network.Mode = "push" },
			wantErr: `network.mode must be probe or off, got "push"`,
		},
		{
			name:    "journal needs database",
			mutate:  func(c *Config) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "journal.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "disabled journal skips database",
			mutate:  func(c *Config) { c.Journal.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "status port range",
			mutate:  func(c *Config) { c.Status.Port = 70000 },
			wantErr: "status.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: `logging.level must be debug, info, warn or error, got "verbose"`,
		},
		{
			name:    "log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
