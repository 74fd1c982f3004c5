// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package config loads portal client settings from a YAML file and
// command-line flags.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/request"
	"github.com/edusphere/portal/internal/xdg"
)

// Default values.
const (
	DefaultBaseURL   = "http://localhost:8000/api"
	DefaultLogFormat = "text"
	DefaultLogLevel  = "info"
)

// Config holds all client settings.
type Config struct {
	BaseURL string        `koanf:"base_url"`
	Request RequestConfig `koanf:"request"`
	Auth    AuthConfig    `koanf:"auth"`
	Session SessionConfig `koanf:"session"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// RequestConfig configures the request executor.
type RequestConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryBase     time.Duration `koanf:"retry_base"`
}

// AuthConfig configures the auth state machine.
type AuthConfig struct {
	// RevalidateInterval of zero disables background revalidation.
	RevalidateInterval time.Duration `koanf:"revalidate_interval"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	// Dir holds per-origin session files. Empty means the XDG state directory.
	Dir string `koanf:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the metrics and health server.
type MetricsConfig struct {
	// Addr is empty to disable the server.
	Addr string `koanf:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Request: RequestConfig{
			Timeout:       request.DefaultTimeout,
			RetryAttempts: request.DefaultRetryAttempts,
			RetryBase:     request.DefaultRetryBase,
		},
		Auth: AuthConfig{RevalidateInterval: authstate.DefaultRevalidateInterval},
		Log:  LogConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"base-url":            "base_url",
	"timeout":             "request.timeout",
	"retry-attempts":      "request.retry_attempts",
	"retry-base":          "request.retry_base",
	"revalidate-interval": "auth.revalidate_interval",
	"session-dir":         "session.dir",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"metrics-addr":        "metrics.addr",
}

// RegisterFlags adds the config flags to fs with their default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("base-url", d.BaseURL, "identity service base URL")
	fs.Duration("timeout", d.Request.Timeout, "per-attempt request timeout")
	fs.Int("retry-attempts", d.Request.RetryAttempts, "retries after the first attempt for transient failures")
	fs.Duration("retry-base", d.Request.RetryBase, "delay before the first retry, doubled for each later retry")
	fs.Duration("revalidate-interval", d.Auth.RevalidateInterval, "session revalidation interval (0 disables)")
	fs.String("session-dir", d.Session.Dir, "session state directory (default: XDG state dir)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
}

// Load reads settings from path and flags. Flags set on the command line
// override the file; unset flags only fill keys the file leaves out. An
// empty path means the default XDG config file, which may be absent.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := xdg.ConfigPath()
		if err == nil {
			path = p
		}
	}

	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return oops.Code("CONFIG_INVALID").
			With("base_url", c.BaseURL).
			Errorf("base_url must be an absolute http(s) URL")
	}
	if c.Request.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("request.timeout", c.Request.Timeout).
			Errorf("request.timeout must be positive")
	}
	if c.Request.RetryAttempts < 0 {
		return oops.Code("CONFIG_INVALID").
			With("request.retry_attempts", c.Request.RetryAttempts).
			Errorf("request.retry_attempts must not be negative")
	}
	if c.Request.RetryBase <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("request.retry_base", c.Request.RetryBase).
			Errorf("request.retry_base must be positive")
	}
	if c.Auth.RevalidateInterval < 0 {
		return oops.Code("CONFIG_INVALID").
			With("auth.revalidate_interval", c.Auth.RevalidateInterval).
			Errorf("auth.revalidate_interval must not be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log.format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log.level", c.Log.Level).
			Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

// SessionsDir returns the configured session directory or the XDG default.
func (c *Config) SessionsDir() (string, error) {
	if c.Session.Dir != "" {
		return c.Session.Dir, nil
	}
	return xdg.SessionsDir()
}

// ExecutorConfig converts the request settings.
func (c *Config) ExecutorConfig(userAgent string) request.Config {
	attempts := c.Request.RetryAttempts
	if attempts == 0 {
		// request.Config treats zero as "use the default".
		attempts = -1
	}
	return request.Config{
		BaseURL:       c.BaseURL,
		Timeout:       c.Request.Timeout,
		RetryAttempts: attempts,
		RetryBase:     c.Request.RetryBase,
		UserAgent:     userAgent,
	}
}
