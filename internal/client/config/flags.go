package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/flagx"
)

// parseFlags populates cfg from command-line flags.
//
//	-a string   base URL of the API server
//	-t int      request timeout, seconds
func parseFlags(cfg *Config, osArgs []string) {
	args := flagx.FilterArgs(osArgs, []string{"-a", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the API server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
