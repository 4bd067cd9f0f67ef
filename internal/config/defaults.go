package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout           = 30 * time.Second
	DefaultRetryBackoff         = 1 * time.Second
	DefaultTokenTTL             = 5 * time.Minute
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultPingInterval         = 25 * time.Second
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultReadLimit            = 1 << 20
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultMessageSendPolicy    = "drop"
	DefaultQueueSize            = 256
	DefaultPollInterval         = 30 * time.Second
	DefaultPollTimeout          = 10 * time.Second
	DefaultReconcileInterval    = 5 * time.Minute
	DefaultTypingTTL            = 10 * time.Second
	DefaultNetworkMode          = "probe"
	DefaultProbeInterval        = 10 * time.Second
	DefaultProbeTimeout         = 3 * time.Second
	DefaultFailureThreshold     = 2
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 5 * time.Second
	DefaultBufferSize           = 1000
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultStatusHost           = "127.0.0.1"
	DefaultStatusPort           = 8081
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	// Realtime defaults
	r := &c.Realtime
	if r.HandshakeTimeout == 0 {
		r.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if r.PingInterval == 0 {
		r.PingInterval = DefaultPingInterval
	}
	if r.PingTimeout == 0 {
		r.PingTimeout = DefaultPingTimeout
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = DefaultWriteTimeout
	}
	if r.ReadLimit == 0 {
		r.ReadLimit = DefaultReadLimit
	}
	if r.ReconnectBaseDelay == 0 {
		r.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if r.ReconnectMaxDelay == 0 {
		r.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if r.MaxReconnectAttempts == 0 {
		r.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if r.MessageSendPolicy == "" {
		r.MessageSendPolicy = DefaultMessageSendPolicy
	}
	if r.QueueSize == 0 {
		r.QueueSize = DefaultQueueSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Inbox defaults
	if c.Inbox.ReconcileInterval == 0 {
		c.Inbox.ReconcileInterval = DefaultReconcileInterval
	}
	if c.Inbox.TypingTTL == 0 {
		c.Inbox.TypingTTL = DefaultTypingTTL
	}

	// Network defaults
	if c.Network.Mode == "" {
		c.Network.Mode = DefaultNetworkMode
	}
	if c.Network.ProbeInterval == 0 {
		c.Network.ProbeInterval = DefaultProbeInterval
	}
	if c.Network.ProbeTimeout == 0 {
		c.Network.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Network.FailureThreshold == 0 {
		c.Network.FailureThreshold = DefaultFailureThreshold
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Journal.Database)

	// Status defaults
	if c.Status.Host == "" {
		c.Status.Host = DefaultStatusHost
	}
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
