package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      token validity, minutes
//	-k string   Gemini API key
//	-m string   Gemini model
//	-o string   CORS origin
//	-r string   revocation backend (memory|postgres)
//	-b string   S3 bucket name
//	-e string   S3 base endpoint; setting it enables snapshots
//
// os.Args is filtered down to these flags first so the JSON config flags
// do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-k", "-m", "-o", "-r", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the http server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to run the grpc health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")

	fs.StringVar(&config.AIAPIKey, "k", config.AIAPIKey, "Gemini API key")
	fs.StringVar(&config.AIModel, "m", config.AIModel, "Gemini model")
	fs.StringVar(&config.CORSOrigin, "o", config.CORSOrigin, "CORS origin")
	fs.StringVar(&config.RevocationBackend, "r", config.RevocationBackend, "revocation backend (memory|postgres)")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	endpoint := fs.String("e", "", "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	if *endpoint != "" {
		config.S3BaseEndpoint = *endpoint
		config.S3Enabled = true
	}
}
