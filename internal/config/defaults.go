package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultProvider       = "yahoo"
	DefaultYahooBaseURL   = "https://query2.finance.yahoo.com"
	DefaultYahooCookieURL = "https://fc.yahoo.com"
	DefaultYahooCrumbURL  = "https://query2.finance.yahoo.com/v1/test/getcrumb"
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultRetryCount     = 2
	DefaultRetryWait      = 500 * time.Millisecond
	DefaultMassiveTimeout = 60 * time.Second
	DefaultLocalDir       = "testdata"
	DefaultSyntheticSeed  = 42
	DefaultMaxDays        = 30.0
	DefaultExpiries       = 5
	DefaultVerbosity      = 1
	DefaultLogFormat      = "text"
)

// Expiry count bounds. Requested counts are clamped into this range.
const (
	MinExpiries = 3
	MaxExpiries = 8
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{Log: LogConfig{Verbosity: DefaultVerbosity}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields and clamps the expiry count.
func (c *Config) ApplyDefaults() {
	if c.Provider.Primary == "" {
		c.Provider.Primary = DefaultProvider
	}

	if c.Yahoo.BaseURL == "" {
		c.Yahoo.BaseURL = DefaultYahooBaseURL
	}
	if c.Yahoo.CookieURL == "" {
		c.Yahoo.CookieURL = DefaultYahooCookieURL
	}
	if c.Yahoo.CrumbURL == "" {
		c.Yahoo.CrumbURL = DefaultYahooCrumbURL
	}
	if c.Yahoo.UserAgent == "" {
		c.Yahoo.UserAgent = DefaultUserAgent
	}
	if c.Yahoo.Timeout == 0 {
		c.Yahoo.Timeout = DefaultHTTPTimeout
	}
	if c.Yahoo.RetryCount == 0 {
		c.Yahoo.RetryCount = DefaultRetryCount
	}
	if c.Yahoo.RetryWait == 0 {
		c.Yahoo.RetryWait = DefaultRetryWait
	}

	if c.Massive.APIKey == "" {
		c.Massive.APIKey = os.Getenv("MASSIVE_API_KEY")
	}
	if c.Massive.APIKey == "" {
		c.Massive.APIKey = os.Getenv("POLYGON_API_KEY")
	}
	if c.Massive.Timeout == 0 {
		c.Massive.Timeout = DefaultMassiveTimeout
	}

	if c.Local.Dir == "" {
		c.Local.Dir = DefaultLocalDir
	}
	if c.Synthetic.Seed == 0 {
		c.Synthetic.Seed = DefaultSyntheticSeed
	}

	if c.Snapshot.MaxDays == 0 {
		c.Snapshot.MaxDays = DefaultMaxDays
	}
	if c.Snapshot.Expiries == 0 {
		c.Snapshot.Expiries = DefaultExpiries
	}
	c.Snapshot.Expiries = ClampExpiries(c.Snapshot.Expiries)

	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// ClampExpiries forces n into [MinExpiries, MaxExpiries].
func ClampExpiries(n int) int {
	return min(max(n, MinExpiries), MaxExpiries)
}
