package config

import "time"

// ThrottleConfig holds the policy for a single named throttle.
type ThrottleConfig struct {
	// Key names the throttle; adapters look it up under this name.
	Key string `yaml:"key"`

	// Window is the fixed counting window. Must be positive.
	Window time.Duration `yaml:"window"`

	// Limit is the maximum number of allowed calls per window. Must be
	// positive.
	Limit int64 `yaml:"limit"`

	// Sweep optionally enables the stale-key janitor. Zero disables it.
	Sweep *SweepConfig `yaml:"sweep,omitempty"`
}

// SweepConfig configures periodic eviction of idle keys.
type SweepConfig struct {
	// Interval is how often the janitor runs.
	Interval time.Duration `yaml:"interval"`

	// MaxAge is how long a key's window start may lie in the past before
	// the entry is evicted. Should be at least the throttle's window.
	MaxAge time.Duration `yaml:"max_age"`
}
