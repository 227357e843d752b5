// Package config loads runtime configuration for the invoicer CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the invoicing API
//	-d string   path to the local SQLite database
//	-t string   bearer token sent with every request
//	-i int      online status check interval (seconds)
//	-w int      HTTP request timeout (seconds, 0 = none)
//	-r int      failed deliveries allowed before a request is abandoned
//	-o string   OTLP/gRPC endpoint for metrics (empty = disabled)
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
// Durations use timex.Duration, so they may be strings like "3s" or integer
// nanoseconds. Keys that are absent leave the current value alone:
//
//	{
//	  "server_url": "https://invoices.example.com",
//	  "db_path": "invoicer.db",
//	  "access_token": "eyJhbGciOi...",
//	  "online_check_interval": "10s",
//	  "request_timeout": "15s",
//	  "max_retries": 3,
//	  "otlp_endpoint": "localhost:4317",
//	  "log_level": "debug"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
