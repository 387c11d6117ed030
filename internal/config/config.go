// Package config loads the webstatus-proxy configuration from an
// optional YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "500ms", or from plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the proxy configuration. Every field has a usable default;
// a config file and environment variables layer on top in that order.
type Config struct {
	// Listen is the proxy bind address.
	Listen string `yaml:"listen"`

	// BaseURL is the upstream features search endpoint.
	BaseURL string `yaml:"base_url"`

	// UserAgent identifies the proxy against the upstream endpoint.
	UserAgent string `yaml:"user_agent"`

	// RedisAddr enables shared rate-limit holdoff state when non-empty.
	RedisAddr string `yaml:"redis_addr"`

	// Timeout bounds each upstream attempt.
	Timeout Duration `yaml:"timeout"`

	// MaxAttempts is the retry budget per upstream page request.
	MaxAttempts int `yaml:"max_attempts"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogPretty switches log output from JSON to console format.
	LogPretty bool `yaml:"log_pretty"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Listen:      ":8080",
		BaseURL:     "https://api.webstatus.dev/v1/features",
		UserAgent:   "webstatus-proxy/0.1.0",
		Timeout:     Duration(30 * time.Second),
		MaxAttempts: 3,
		LogLevel:    "info",
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty or the file does not exist), then
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file: defaults + env only.
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg fields from WEBSTATUS_* environment variables.
func applyEnv(cfg *Config) error {
	setString(&cfg.Listen, "WEBSTATUS_LISTEN")
	setString(&cfg.BaseURL, "WEBSTATUS_BASE_URL")
	setString(&cfg.UserAgent, "WEBSTATUS_USER_AGENT")
	setString(&cfg.RedisAddr, "WEBSTATUS_REDIS_ADDR")
	setString(&cfg.LogLevel, "WEBSTATUS_LOG_LEVEL")

	if v := os.Getenv("WEBSTATUS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WEBSTATUS_TIMEOUT: %w", err)
		}
		cfg.Timeout = Duration(d)
	}
	if v := os.Getenv("WEBSTATUS_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBSTATUS_MAX_ATTEMPTS: %w", err)
		}
		cfg.MaxAttempts = n
	}
	if v := os.Getenv("WEBSTATUS_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WEBSTATUS_LOG_PRETTY: %w", err)
		}
		cfg.LogPretty = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", c.Timeout)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0 (got %d)", c.MaxAttempts)
	}
	return nil
}
