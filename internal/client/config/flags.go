package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/invoicer/internal/flagx"
)

var ownFlags = []string{"-a", "-d", "-t", "-i", "-w", "-r", "-o", "-l"}

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered first, so flags owned by other loaders are ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the invoicing API")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("w", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds, 0 disables)")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "max retries per pending request")
	fs.StringVar(&cfg.OTLPEndpoint, "o", cfg.OTLPEndpoint, "OTLP gRPC endpoint for metrics")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
