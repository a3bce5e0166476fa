package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/trainingpay/internal/flagx"
	"github.com/dmitrijs2005/trainingpay/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI configuration file.
type JsonConfig struct {
	ServerURL      *string         `json:"server_url"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the keys present in the file named by
// -c / -config. Read or decode errors panic.
func parseJson(cfg *Config, osArgs []string) {
	path := flagx.ConfigFilePath(osArgs)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
