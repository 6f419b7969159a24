// Package config loads the snapshot tool configuration from YAML, the
// environment and command-line overrides.
package config

import "time"

// Config is the root configuration for a snapshot run.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Yahoo     YahooConfig     `yaml:"yahoo"`
	Massive   MassiveConfig   `yaml:"massive"`
	Local     LocalConfig     `yaml:"local"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Log       LogConfig       `yaml:"log"`
	Output    OutputConfig    `yaml:"output"`
}

// ProviderConfig selects the market data providers.
// Secondary is consulted only when a primary call fails.
type ProviderConfig struct {
	Primary   string `yaml:"primary" validate:"required,oneof=yahoo massive local synthetic"`
	Secondary string `yaml:"secondary" validate:"omitempty,oneof=yahoo massive local synthetic,nefield=Primary"`
}

// YahooConfig holds the Yahoo Finance HTTP settings. Headers are sent with
// every request in addition to the user agent.
type YahooConfig struct {
	BaseURL    string            `yaml:"base_url" validate:"required,url"`
	CookieURL  string            `yaml:"cookie_url" validate:"omitempty,url"`
	CrumbURL   string            `yaml:"crumb_url" validate:"omitempty,url"`
	UserAgent  string            `yaml:"user_agent"`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout" validate:"gt=0"`
	RetryCount int               `yaml:"retry_count" validate:"gte=0,lte=10"`
	RetryWait  time.Duration     `yaml:"retry_wait" validate:"gte=0"`
}

// MassiveConfig holds the Massive (formerly Polygon.io) API settings.
type MassiveConfig struct {
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LocalConfig points at a directory of CSV fixtures, one sub-directory per symbol.
type LocalConfig struct {
	Dir string `yaml:"dir"`
}

// SyntheticConfig seeds the generated chain.
type SyntheticConfig struct {
	Seed int64 `yaml:"seed"`
}

// SnapshotConfig bounds the chain request.
type SnapshotConfig struct {
	MaxDays  float64 `yaml:"max_days" validate:"gt=0"`
	Expiries int     `yaml:"expiries"`
}

// LogConfig controls diagnostics on stderr.
type LogConfig struct {
	Verbosity int    `yaml:"verbosity" validate:"gte=0,lte=3"`
	Format    string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// OutputConfig controls the emitted document.
type OutputConfig struct {
	Pretty  bool   `yaml:"pretty"`
	CSVPath string `yaml:"csv_path"`
}
