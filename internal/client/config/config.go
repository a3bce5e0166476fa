// Package config loads runtime configuration for the trainingpay CLI.
//
// Sources, in increasing precedence: built-in defaults, an optional JSON
// file named by -c / -config, then command-line flags.
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "10s"
//	}
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the CLI.
//
// Fields:
//   - ServerURL: base URL of the trainingpay HTTP API.
//   - RequestTimeout: upper bound for a single API call.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with defaults for a local server.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
