// Package config loads client settings from flags, environment, .env and YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by the client.
const EnvPrefix = "JASON"

// DefaultAPIURL is the production endpoint of the Jason API.
const DefaultAPIURL = "http://api-argonaut.rokubun.cat/api"

// Config holds all configuration values for the client.
type Config struct {
	// Base URL of the Jason API
	APIURL string

	// Credentials; empty values are resolved from JASON_API_KEY / JASON_SECRET_TOKEN
	APIKey      string
	SecretToken string

	// Delay between two status polls
	PollInterval time.Duration

	// Ceiling for the submit/poll/download workflow, 0 disables it
	Timeout time.Duration

	// Per HTTP request timeout
	RequestTimeout time.Duration

	// Client-side request rate (requests per second), 0 means unlimited
	RateLimit float64

	// Directory downloaded results are written to, empty for the working directory
	DownloadDir string

	// Optional S3 bucket finished result archives are copied to
	ResultBucket string

	// OTLP gRPC collector address, empty disables tracing
	OTELEndpoint string

	// Prometheus textfile written on exit, empty disables it
	MetricsFile string

	// Log level name or verbosity number
	Debug string
}

// Defaults registers the default value of every key on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("url", DefaultAPIURL)
	v.SetDefault("api_key", "")
	v.SetDefault("secret_token", "")
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("download_dir", "")
	v.SetDefault("result_bucket", "")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("debug", "info")
}

// LoadDotEnv loads variables from a .env file without overriding the
// ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Bind prepares v to read JASON_* environment variables and, if
// configPath is set, the given YAML file.
func Bind(v *viper.Viper, configPath string) error {
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// JASON_API_URL is the documented override for the endpoint.
	if err := v.BindEnv("url", EnvPrefix+"_API_URL", EnvPrefix+"_URL"); err != nil {
		return err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// FromViper converts the values held by v into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIURL:         strings.TrimRight(v.GetString("url"), "/"),
		APIKey:         v.GetString("api_key"),
		SecretToken:    v.GetString("secret_token"),
		PollInterval:   v.GetDuration("poll_interval"),
		Timeout:        v.GetDuration("timeout"),
		RequestTimeout: v.GetDuration("request_timeout"),
		RateLimit:      v.GetFloat64("rate_limit"),
		DownloadDir:    v.GetString("download_dir"),
		ResultBucket:   v.GetString("result_bucket"),
		OTELEndpoint:   v.GetString("otel_endpoint"),
		MetricsFile:    v.GetString("metrics_file"),
		Debug:          v.GetString("debug"),
	}

	if cfg.APIURL == "" {
		return nil, fmt.Errorf("url is required (env: %s_API_URL)", EnvPrefix)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %v", cfg.Timeout)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must not be negative, got %v", cfg.RateLimit)
	}

	return cfg, nil
}

// Load reads configuration from the environment and the optional config file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if err := Bind(v, configPath); err != nil {
		return nil, err
	}
	return FromViper(v)
}
