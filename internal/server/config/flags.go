package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-b string   storage backend: postgres | mongo
//	-d string   PostgreSQL DSN
//	-m string   MongoDB URI
//	-n string   MongoDB database name
//	-r string   Redis URL for the key-creation lock
//	-s string   token signing secret
//	-t int      token validity, minutes
//	-g string   payment gateway URL
//	-e string   payment gateway endpoint path used in the checksum
//	-i string   merchant id
//	-k string   gateway salt key
//	-x int      gateway salt index
//	-w int      gateway call timeout, seconds
//
// Only these flags are parsed, so unrelated arguments (such as -c) are
// left for other parsers.
func parseFlags(config *Config, osArgs []string) {
	args := flagx.FilterArgs(osArgs, []string{
		"-a", "-b", "-d", "-m", "-n", "-r", "-s", "-t", "-g", "-e", "-i", "-k", "-x", "-w",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (postgres|mongo)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "mongodb URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "mongodb database")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")

	fs.StringVar(&config.GatewayURL, "g", config.GatewayURL, "payment gateway URL")
	fs.StringVar(&config.GatewayEndpointPath, "e", config.GatewayEndpointPath, "payment gateway endpoint path")
	fs.StringVar(&config.MerchantID, "i", config.MerchantID, "merchant id")
	fs.StringVar(&config.SaltKey, "k", config.SaltKey, "gateway salt key")
	fs.IntVar(&config.SaltIndex, "x", config.SaltIndex, "gateway salt index")

	gatewayTimeout := fs.Int("w", int(config.GatewayTimeout.Seconds()), "gateway_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.GatewayTimeout = time.Duration(*gatewayTimeout) * time.Second
}
