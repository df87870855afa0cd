package config

import (
	"fmt"
	"strings"
	"time"
)

// ResilienceConfig tunes the replay of queued offline changes and the breaker in front of the backend.
type ResilienceConfig struct {
	Retry          RetryConfig          `koanf:"retry"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// RetryConfig bounds the replay of queued changes: MaxAttempts includes the first try.
type RetryConfig struct {
	MaxAttempts    uint          `koanf:"maxattempts"`
	InitialBackoff time.Duration `koanf:"initialbackoff"`
	MaxBackoff     time.Duration `koanf:"maxbackoff"`
	Multiplier     float64       `koanf:"multiplier"`
}

// CircuitBreakerConfig opens the circuit after ConsecutiveFailures transient failures in a row, or
// when more than ErrorRatePercent of the calls since the last reset failed. HalfOpenRequests calls
// probe the backend once OpenTimeout has passed; zero lets a single call through.
type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
	HalfOpenRequests    uint32        `koanf:"halfopenrequests"`
}

func (c *ResilienceConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Resilience ---\n")
	b.WriteString(fmt.Sprintf("  retry: attempts=%d backoff=%v..%v x%.1f\n",
		c.Retry.MaxAttempts, c.Retry.InitialBackoff, c.Retry.MaxBackoff, c.Retry.Multiplier))
	b.WriteString(fmt.Sprintf("  circuitbreaker: failures=%d errorrate=%d%% open=%v halfopen=%d\n",
		c.CircuitBreaker.ConsecutiveFailures, c.CircuitBreaker.ErrorRatePercent,
		c.CircuitBreaker.OpenTimeout, c.CircuitBreaker.HalfOpenRequests))
	return b.String()
}

func (c *ResilienceConfig) Validate() error {
	r, cb := c.Retry, c.CircuitBreaker
	switch {
	case r.MaxAttempts == 0:
		return fmt.Errorf("resilience.retry.maxattempts must be greater than 0")
	case r.InitialBackoff <= 0:
		return fmt.Errorf("resilience.retry.initialbackoff must be greater than 0")
	case r.MaxBackoff < r.InitialBackoff:
		return fmt.Errorf("resilience.retry.maxbackoff must not be less than initialbackoff")
	case r.Multiplier < 1:
		return fmt.Errorf("resilience.retry.multiplier must be at least 1")
	case cb.ConsecutiveFailures == 0:
		return fmt.Errorf("resilience.circuitbreaker.consecutivefailures must be greater than 0")
	case cb.ErrorRatePercent < 0 || cb.ErrorRatePercent > 100:
		return fmt.Errorf("resilience.circuitbreaker.errorratepercent must be between 0 and 100")
	case cb.OpenTimeout <= 0:
		return fmt.Errorf("resilience.circuitbreaker.opentimeout must be greater than 0")
	}
	return nil
}
