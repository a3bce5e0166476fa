package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/trainingpay/internal/flagx"
	"github.com/dmitrijs2005/trainingpay/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Absent keys leave the corresponding Config value untouched.
type JsonConfig struct {
	EndpointAddrHTTP      *string         `json:"endpoint_addr_http"`
	StorageBackend        *string         `json:"storage_backend"`
	DatabaseDSN           *string         `json:"database_dsn"`
	MongoURI              *string         `json:"mongo_uri"`
	MongoDatabase         *string         `json:"mongo_database"`
	RedisURL              *string         `json:"redis_url"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	GatewayURL            *string         `json:"gateway_url"`
	GatewayEndpointPath   *string         `json:"gateway_endpoint_path"`
	MerchantID            *string         `json:"merchant_id"`
	SaltKey               *string         `json:"salt_key"`
	SaltIndex             *int            `json:"salt_index"`
	AmountMultiplier      *int64          `json:"amount_multiplier"`
	GatewayTimeout        *timex.Duration `json:"gateway_timeout"`
	RedirectURL           *string         `json:"redirect_url"`
	CallbackURL           *string         `json:"callback_url"`
}

// parseJson loads the file named by -c / -config (if any) and copies every
// key present in it onto config. Unreadable files or invalid JSON panic, as
// a misconfigured server must not start.
func parseJson(config *Config, osArgs []string) {
	path := flagx.ConfigFilePath(osArgs)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.GatewayURL, c.GatewayURL)
	setString(&config.GatewayEndpointPath, c.GatewayEndpointPath)
	setString(&config.MerchantID, c.MerchantID)
	setString(&config.SaltKey, c.SaltKey)
	setString(&config.RedirectURL, c.RedirectURL)
	setString(&config.CallbackURL, c.CallbackURL)

	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.GatewayTimeout != nil {
		config.GatewayTimeout = c.GatewayTimeout.Duration
	}
	if c.SaltIndex != nil {
		config.SaltIndex = *c.SaltIndex
	}
	if c.AmountMultiplier != nil {
		config.AmountMultiplier = *c.AmountMultiplier
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
