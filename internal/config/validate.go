package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if err := validateURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Auth.UserID == "" {
		return errors.New("auth.user_id is required")
	}
	if c.Auth.Token == "" && c.Auth.PrivateKeyPath == "" {
		return errors.New("auth.token or auth.private_key_path is required")
	}

	r := c.Realtime
	if r.URL != "" {
		if err := validateURL("realtime.url", r.URL, "http", "https", "ws", "wss"); err != nil {
			return err
		}
	}
	if r.ReconnectBaseDelay > r.ReconnectMaxDelay {
		return fmt.Errorf("realtime.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			r.ReconnectBaseDelay, r.ReconnectMaxDelay)
	}
	if r.MaxReconnectAttempts < 1 {
		return errors.New("realtime.max_reconnect_attempts must be >= 1")
	}
	if r.PingInterval > 0 && r.PingTimeout <= r.PingInterval {
		return fmt.Errorf("realtime.ping_timeout (%s) must exceed ping_interval (%s)", r.PingTimeout, r.PingInterval)
	}
	switch r.MessageSendPolicy {
	case "drop", "reject":
	default:
		return fmt.Errorf("realtime.message_send_policy must be drop or reject, got %q", r.MessageSendPolicy)
	}
	if r.QueueSize < 1 {
		return errors.New("realtime.queue_size must be >= 1")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	switch c.Network.Mode {
	case "probe", "off":
	default:
		return fmt.Errorf("network.mode must be probe or off, got %q", c.Network.Mode)
	}
	if c.Network.FailureThreshold < 1 {
		return errors.New("network.failure_threshold must be >= 1")
	}

	if c.Journal.Enabled {
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
	}

	if c.Status.Port < 1 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 1 and 65535, got %d", c.Status.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %v URL, got %q", field, schemes, raw)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
