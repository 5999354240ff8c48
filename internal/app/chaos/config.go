package chaos

import (
	"sync/atomic"
	"time"
)

const (
	MinIntervalSeconds     = 1
	MaxIntervalSeconds     = 86400
	DefaultIntervalSeconds = 60
)

// Config is the live scheduler configuration. Handlers flip it at
// runtime; the scheduler reads it on every iteration, so changes take
// effect without a restart.
type Config struct {
	enabled         atomic.Bool
	intervalSeconds atomic.Int64
}

func NewConfig(enabled bool, intervalSeconds int) *Config {
	c := &Config{}
	c.SetEnabled(enabled)
	c.SetIntervalSeconds(intervalSeconds)
	return c
}

func (c *Config) Enabled() bool {
	return c.enabled.Load()
}

func (c *Config) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.intervalSeconds.Load()) * time.Second
}

func (c *Config) IntervalSeconds() int {
	return int(c.intervalSeconds.Load())
}

// SetIntervalSeconds clamps the value to [MinIntervalSeconds,
// MaxIntervalSeconds] and returns what was applied.
func (c *Config) SetIntervalSeconds(seconds int) int {
	if seconds < MinIntervalSeconds {
		seconds = MinIntervalSeconds
	}
	if seconds > MaxIntervalSeconds {
		seconds = MaxIntervalSeconds
	}
	c.intervalSeconds.Store(int64(seconds))
	return seconds
}
