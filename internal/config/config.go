// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package config loads service configuration from a YAML file, command
// line flags, and environment variables for secrets.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables for secrets. Secrets never live in the YAML file.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvTokenSecret  = "MATCHDAY_TOKEN_SECRET"
	EnvSMTPPassword = "MATCHDAY_SMTP_PASSWORD"
)

// Config is the full service configuration.
type Config struct {
	Log           LogConfig           `koanf:"log"`
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Session       SessionConfig       `koanf:"session"`
	Mail          MailConfig          `koanf:"mail"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// ServerConfig configures the public API listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// ObservabilityConfig configures the metrics and health listener.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL. URL comes from DATABASE_URL.
type DatabaseConfig struct {
	URL string `koanf:"-"`
}

// SessionConfig configures session token issuance. Secret comes from
// MATCHDAY_TOKEN_SECRET.
type SessionConfig struct {
	Secret string        `koanf:"-"`
	Issuer string        `koanf:"issuer"`
	TTL    time.Duration `koanf:"ttl"`
}

// MailConfig configures email dispatch. Mode "log" swaps the SMTP
// dispatcher for a log-only one, for development.
type MailConfig struct {
	Mode        string `koanf:"mode"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Username    string `koanf:"username"`
	Password    string `koanf:"-"`
	From        string `koanf:"from"`
	FrontendURL string `koanf:"frontend_url"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Log:           LogConfig{Format: "json"},
		Server:        ServerConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		Session: SessionConfig{
			Issuer: "matchday",
			TTL:    24 * time.Hour,
		},
		Mail: MailConfig{
			Mode: "smtp",
			Port: 587,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file (if any),
// then flags, then environment secrets. Later sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	cfg.Session.Secret = os.Getenv(EnvTokenSecret)
	cfg.Mail.Password = os.Getenv(EnvSMTPPassword)

	return cfg, nil
}

// Validate checks the configuration for a runnable server.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("%s is required", EnvDatabaseURL)
	}
	if len(c.Session.Secret) < 32 {
		return oops.Code("CONFIG_INVALID").
			Errorf("%s must be at least 32 bytes", EnvTokenSecret)
	}
	if c.Session.Issuer == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session.issuer is required")
	}

	switch c.Mail.Mode {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mail.host is required in smtp mode")
		}
		if c.Mail.From == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mail.from is required in smtp mode")
		}
		if c.Mail.FrontendURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("mail.frontend_url is required in smtp mode")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("mode", c.Mail.Mode).
			Errorf("mail.mode must be smtp or log")
	}

	return nil
}

// ValidateMigrate checks the configuration for migration commands, which
// only need the database.
func (c *Config) ValidateMigrate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("%s is required", EnvDatabaseURL)
	}
	return nil
}
