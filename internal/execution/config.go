package execution

import (
	"time"
)

// Config 执行层参数。
type Config struct {
	Symbols          []string
	Interval         string
	KlineLimit       int
	Leverage         int
	PositionFraction float64
	CommissionRate   float64
	Asset            string
	DryRun           bool
	HedgeMode        bool

	MaxAttempts   int
	RetryBackoff  time.Duration
	MaxBackoff    time.Duration
	CallTimeout   time.Duration
	ShutdownGrace time.Duration
	// FreshnessWindow: no risk-increasing action when the last sync is older than this.
	FreshnessWindow time.Duration
	ClockResync     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval == "" {
		c.Interval = "15m"
	}
	if c.KlineLimit <= 0 {
		c.KlineLimit = 100
	}
	if c.Leverage <= 0 {
		c.Leverage = 1
	}
	if c.Asset == "" {
		c.Asset = "USDT"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = time.Minute
	}
	if c.ClockResync <= 0 {
		c.ClockResync = 10 * time.Minute
	}
	return c
}

func nextDelay(current, max time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
