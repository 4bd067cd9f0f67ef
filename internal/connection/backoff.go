package connection

import "time"

// ReconnectPolicy bounds automatic reconnection.
type ReconnectPolicy struct {
	BaseDelay   time.Duration // Delay before the first retry. Default: 1s
	MaxDelay    time.Duration // Cap on any single delay. Default: 30s
	MaxAttempts int           // Consecutive failures before giving up. Default: 5
}

// DefaultReconnectPolicy returns the production policy.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// CanRetry reports whether another automatic attempt is allowed after
// attempts consecutive retries.
func (p ReconnectPolicy) CanRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// Delay returns min(BaseDelay * 2^attempt, MaxDelay) for the given attempt number.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	wait := p.BaseDelay
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= p.MaxDelay || wait <= 0 {
			return p.MaxDelay
		}
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}
