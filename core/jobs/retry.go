package jobs

import (
	"math"
	"time"
)

// RetryConfig bounds how a failing job is retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, the first included.
	MaxAttempts int `mapstructure:"max_attempts" default:"4"`
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration `mapstructure:"initial_delay" default:"1s"`
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration `mapstructure:"max_delay" default:"1m"`
	// Multiplier grows the delay after each retry.
	Multiplier float64 `mapstructure:"multiplier" default:"2"`
}

// DefaultRetryConfig returns the defaults used when a field is unset.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Delay returns the wait before retry number retry (1 for the first retry).
func (c RetryConfig) Delay(retry int) time.Duration {
	if retry < 1 || c.InitialDelay <= 0 {
		return 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(retry-1))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}
