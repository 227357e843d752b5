package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/invoicer/internal/flagx"
	"github.com/dmitrijs2005/invoicer/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Durations use
// timex.Duration, so both "90m" and integer nanoseconds are accepted.
// Empty values leave the current setting alone.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	OTLPEndpoint                string         `json:"otlp_endpoint"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config. Without either flag nothing is loaded. Panics if the file cannot
// be read or contains invalid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.OTLPEndpoint, c.OTLPEndpoint)
	overlay(&config.LogLevel, c.LogLevel)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
