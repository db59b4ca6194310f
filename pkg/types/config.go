// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single HTTP request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "antiplagiat/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EngineConfig locates the detection engine.
type EngineConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the engine root, e.g. "http://localhost:8001".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
}

// PollConfig bounds the caller-driven poll loop.
type PollConfig struct {
	// Interval is the delay before the second fetch (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxInterval caps the backoff delay (default 15s).
	MaxInterval time.Duration `json:"max_interval" yaml:"max_interval" mapstructure:"max_interval"`

	// Multiplier grows the delay after each non-terminal fetch (default 1.5).
	Multiplier float64 `json:"multiplier" yaml:"multiplier" mapstructure:"multiplier"`

	// MaxAttempts is the fetch budget for one task (default 60).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// MaxDuration is the wall-clock budget for one task (default 5m).
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`

	// FetchTimeout bounds each individual fetch (default 15s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	// MaxConsecutiveErrors is how many transient fetch failures in a row
	// are tolerated before giving up (default 3).
	MaxConsecutiveErrors int `json:"max_consecutive_errors" yaml:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`

	// Rate limits fetches per second across all polled tasks; 0 disables it.
	Rate float64 `json:"rate" yaml:"rate" mapstructure:"rate"`
}

// ArchiveConfig holds settings for the local report archive.
type ArchiveConfig struct {
	// Dir is the directory holding the archive database (default ".antiplagiat").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Config groups all settings read by the CLI.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine" mapstructure:"engine"`
	Poll    PollConfig    `json:"poll" yaml:"poll" mapstructure:"poll"`
	Archive ArchiveConfig `json:"archive" yaml:"archive" mapstructure:"archive"`
}
