// Package config loads the service configuration from a YAML file, an
// optional .env file and SHEPHERD_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full service configuration.
type Config struct {
	Env string `yaml:"env"`

	Server struct {
		Addr            string        `yaml:"addr"`
		SlowRequestMS   int           `yaml:"slow_request_ms"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Storage struct {
		Path        string `yaml:"path"`
		SlowQueryMS int    `yaml:"slow_query_ms"`
	} `yaml:"storage"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		Issuer    string        `yaml:"issuer"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   struct {
			Path       string `yaml:"path"`
			MaxSizeMB  int    `yaml:"max_size_mb"`
			MaxBackups int    `yaml:"max_backups"`
			MaxAgeDays int    `yaml:"max_age_days"`
			Compress   bool   `yaml:"compress"`
		} `yaml:"file"`
	} `yaml:"logging"`

	Email struct {
		Provider string `yaml:"provider"`
		From     string `yaml:"from"`
		ReplyTo  string `yaml:"reply_to"`
		Resend   struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"resend"`
		SMTP struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			SSL      bool   `yaml:"ssl"`
		} `yaml:"smtp"`
	} `yaml:"email"`

	Notification struct {
		Organization string        `yaml:"organization"`
		Website      string        `yaml:"website"`
		SendTimeout  time.Duration `yaml:"send_timeout"`
		MaxInFlight  int           `yaml:"max_in_flight"`
		RatePerSec   float64       `yaml:"rate_per_sec"`
		Burst        int           `yaml:"burst"`
	} `yaml:"notification"`

	Outbox struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval"`
		BaseDelay time.Duration `yaml:"base_delay"`
		MaxDelay  time.Duration `yaml:"max_delay"`
	} `yaml:"outbox"`

	Scheduling struct {
		EnforceSlotChecks bool `yaml:"enforce_slot_checks"`
	} `yaml:"scheduling"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Outbox.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration.
// PRE: path is empty (DefaultPath) or names a YAML file
// POST: .env loaded if present, ${VAR} placeholders expanded, SHEPHERD_*
// overrides applied, defaults filled and the result validated.
// A missing DefaultPath yields defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &Config{}
	cfg.Outbox.Enabled = true

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode expands ${VAR} placeholders and rejects unknown keys.
func decode(data []byte, cfg *Config) error {
	data = []byte(os.ExpandEnv(string(data)))
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv lets deployment secrets stay out of the YAML file.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Env, "SHEPHERD_ENV")
	set(&c.Server.Addr, "SHEPHERD_ADDR")
	set(&c.Storage.Path, "SHEPHERD_DB_PATH")
	set(&c.Auth.JWTSecret, "SHEPHERD_JWT_SECRET")
	set(&c.Email.Resend.APIKey, "SHEPHERD_RESEND_KEY")
	set(&c.Email.SMTP.Password, "SHEPHERD_SMTP_PASSWORD")
}

func (c *Config) applyDefaults() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.SlowRequestMS <= 0 {
		c.Server.SlowRequestMS = 200
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 10
	}
	if c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = 20
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "shepherd.db"
	}
	if c.Storage.SlowQueryMS <= 0 {
		c.Storage.SlowQueryMS = 100
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
		if c.Env == EnvDevelopment {
			c.Logging.Format = "text"
		}
	}
	if c.Logging.File.MaxSizeMB <= 0 {
		c.Logging.File.MaxSizeMB = 100
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "noop"
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Notification.Organization == "" {
		c.Notification.Organization = "Shepherd"
	}
	if c.Notification.SendTimeout <= 0 {
		c.Notification.SendTimeout = 10 * time.Second
	}
	if c.Notification.MaxInFlight <= 0 {
		c.Notification.MaxInFlight = 4
	}
	if c.Outbox.Interval <= 0 {
		c.Outbox.Interval = 5 * time.Minute
	}
	if c.Outbox.BaseDelay <= 0 {
		c.Outbox.BaseDelay = time.Minute
	}
	if c.Outbox.MaxDelay <= 0 {
		c.Outbox.MaxDelay = time.Hour
	}
}

// Validate checks cross-field rules.
// POST: nil, or an error naming the first offending key
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("env: must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	if c.Env != EnvDevelopment && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required outside development (set SHEPHERD_JWT_SECRET)")
	}
	if c.Env == EnvProduction && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes in production")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: must be json or text, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Server.RateLimit.RPS < 0 {
		return errors.New("server.rate_limit.rps cannot be negative")
	}
	switch c.Email.Provider {
	case "noop":
	case "resend":
		if c.Email.Resend.APIKey == "" {
			return errors.New("email.resend.api_key is required for the resend provider (set SHEPHERD_RESEND_KEY)")
		}
	case "smtp":
		if c.Email.SMTP.Host == "" {
			return errors.New("email.smtp.host is required for the smtp provider")
		}
	default:
		return fmt.Errorf("email.provider: must be resend, smtp or noop, got %q", c.Email.Provider)
	}
	if c.Email.Provider != "noop" && c.Email.From == "" {
		return errors.New("email.from is required when mail is sent")
	}
	return nil
}

// IsDevelopment reports whether dev-only behavior (seeding, random token
// secret) is allowed.
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// SlowRequest returns the slow request threshold.
func (c *Config) SlowRequest() time.Duration {
	return time.Duration(c.Server.SlowRequestMS) * time.Millisecond
}

// SlowQuery returns the slow query threshold.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.Storage.SlowQueryMS) * time.Millisecond
}
