package config

import "time"

// Config holds runtime settings for the cardkeeper client.
//
// Fields:
//   - ServerURL: base URL of the cardkeeper HTTP API.
//   - CacheFile: path of the local SQLite cache.
//   - RequestTimeout: upper bound for a single API round trip.
type Config struct {
	ServerURL      string
	CacheFile      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.CacheFile = "cardkeeper.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present). Command-line flags are bound later with BindFlags, so
// they take precedence over both.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	return cfg
}
