package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics HTTP bind address, empty disables the endpoint
//	-d string   database DSN, "memory" selects the in-memory store
//	-k string   encryption secret
//	-s string   OAuth state signing key
//	-u string   public base URL used in emails
//	-t int      session lifetime, hours
//	-l string   log level (debug, info, warn, error)
//
// Notes:
//   - args are filtered down to the flags recognized here using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - -t is accepted as an integer number of hours.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-k", "-s", "-u", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EncryptionSecret, "k", config.EncryptionSecret, "encryption secret")
	fs.StringVar(&config.StateSigningKey, "s", config.StateSigningKey, "OAuth state signing key")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")
	sessionTTL := fs.Int("t", int(config.SessionTTL.Hours()), "session lifetime (in hours)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Hour
	return nil
}
