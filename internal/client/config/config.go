package config

import "time"

// Config holds runtime settings for the invoicer client.
//
// Units: OnlineCheckInterval and RequestTimeout are time.Duration values;
// a zero RequestTimeout means no client-side timeout.
type Config struct {
	ServerURL           string
	DBPath              string
	AccessToken         string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	MaxRetries          int
	OTLPEndpoint        string
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "invoicer.db"
	c.OnlineCheckInterval = 10 * time.Second
	c.RequestTimeout = 0
	c.MaxRetries = 3
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
