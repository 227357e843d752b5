package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/invoicer/internal/flagx"
	"github.com/dmitrijs2005/invoicer/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell an absent key from a zero value.
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	DBPath              *string         `json:"db_path"`
	AccessToken         *string         `json:"access_token"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	MaxRetries          *int            `json:"max_retries"`
	OTLPEndpoint        *string         `json:"otlp_endpoint"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setIf(&cfg.ServerURL, jc.ServerURL)
	setIf(&cfg.DBPath, jc.DBPath)
	setIf(&cfg.AccessToken, jc.AccessToken)
	setIf(&cfg.MaxRetries, jc.MaxRetries)
	setIf(&cfg.OTLPEndpoint, jc.OTLPEndpoint)
	setIf(&cfg.LogLevel, jc.LogLevel)
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
