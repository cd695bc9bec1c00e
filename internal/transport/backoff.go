package transport

// ReconnectConfig controls the retry schedule the supervisor's reconnect
// loop follows. Grounded on the protocol's fixed backoff pattern: 25ms,
// 50ms, 100ms, 250ms, then sustained at 250ms for as long as MaxAttempts
// allows (0 means unlimited).
type ReconnectConfig struct {
	MaxAttempts    int
	BackoffPattern []int // milliseconds
	SustainedDelay int   // milliseconds, used once the pattern is exhausted
}

// DefaultReconnectConfig returns the protocol-mandated schedule.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:    0,
		BackoffPattern: []int{25, 50, 100, 250},
		SustainedDelay: 250,
	}
}

// DelayMillis returns the delay before reconnection attempt number attempt
// (1-indexed).
func (c ReconnectConfig) DelayMillis(attempt int) int {
	if len(c.BackoffPattern) == 0 {
		return c.SustainedDelay
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index < len(c.BackoffPattern) {
		return c.BackoffPattern[index]
	}
	return c.SustainedDelay
}

// Exhausted reports whether attempt exceeds MaxAttempts. A MaxAttempts of
// 0 means unlimited retries, so this always returns false in that case.
func (c ReconnectConfig) Exhausted(attempt int) bool {
	if c.MaxAttempts <= 0 {
		return false
	}
	return attempt > c.MaxAttempts
}
