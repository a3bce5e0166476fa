package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	t.Run("loads every key", func(t *testing.T) {
		path := writeTempFile(t, `{"server_url":"https://pay.example","request_timeout":"3s"}`)

		cfg := &Config{}
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "https://pay.example", cfg.ServerURL)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		path := writeTempFile(t, `{"request_timeout":1000000000}`)

		cfg := &Config{ServerURL: "http://keep"}
		parseJson(cfg, []string{"-c", path})

		assert.Equal(t, "http://keep", cfg.ServerURL)
		assert.Equal(t, time.Second, cfg.RequestTimeout)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{ServerURL: "http://keep", RequestTimeout: 42 * time.Second}
		parseJson(cfg, nil)

		assert.Equal(t, "http://keep", cfg.ServerURL)
		assert.Equal(t, 42*time.Second, cfg.RequestTimeout)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		path := writeTempFile(t, `{ not json`)
		assert.Panics(t, func() { parseJson(&Config{}, []string{"-c", path}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.json")
		assert.Panics(t, func() { parseJson(&Config{}, []string{"-c", missing}) })
	})
}
