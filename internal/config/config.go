package config

import "time"

// Config is the root configuration for a chatcore instance.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Poller   PollerConfig   `yaml:"poller"`
	Inbox    InboxConfig    `yaml:"inbox"`
	Network  NetworkConfig  `yaml:"network"`
	Journal  JournalConfig  `yaml:"journal"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds chat REST API settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"` // GET only; 0 disables
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AuthConfig identifies the local user and how to obtain bearer tokens.
// Either Token or PrivateKeyPath must be set.
type AuthConfig struct {
	UserID         string        `yaml:"user_id"`
	Token          string        `yaml:"token"`            // static bearer token
	PrivateKeyPath string        `yaml:"private_key_path"` // RSA PEM for self-signed tokens
	KeyID          string        `yaml:"key_id"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// RealtimeConfig holds socket connection manager settings.
type RealtimeConfig struct {
	// URL overrides api.base_url for the socket endpoint.
	URL                  string        `yaml:"url"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ReadLimit            int64         `yaml:"read_limit"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	MessageSendPolicy    string        `yaml:"message_send_policy"` // drop | reject
	RearmOnRecovery      *bool         `yaml:"rearm_on_recovery"`
	RearmOnResume        bool          `yaml:"rearm_on_resume"`
	QueueSize            int           `yaml:"queue_size"`
}

// PollerConfig holds unread poller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// InboxConfig holds inbox settings.
type InboxConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	TypingTTL         time.Duration `yaml:"typing_ttl"`
}

// NetworkConfig holds reachability monitoring settings.
type NetworkConfig struct {
	Mode             string        `yaml:"mode"`          // probe | off
	ProbeAddress     string        `yaml:"probe_address"` // host:port; derived from api.base_url when empty
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// JournalConfig holds the optional connectivity journal.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StatusConfig holds the local status server settings.
type StatusConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// SocketURL returns the base URL for the realtime endpoint.
func (c *Config) SocketURL() string {
	if c.Realtime.URL != "" {
		return c.Realtime.URL
	}
	return c.API.BaseURL
}

// RearmOnRecoveryEnabled reports realtime.rearm_on_recovery, true when unset.
func (r RealtimeConfig) RearmOnRecoveryEnabled() bool {
	return r.RearmOnRecovery == nil || *r.RearmOnRecovery
}
