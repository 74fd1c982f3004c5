// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/portal/internal/config"
	"github.com/edusphere/portal/pkg/errutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	fs.String("config", "", "unrelated flag")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, 5*time.Minute, cfg.Auth.RevalidateInterval)
	assert.Equal(t, 2, cfg.Request.RetryAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url: https://portal.school.edu/api
request:
  timeout: 3s
  retry_attempts: 4
auth:
  revalidate_interval: 1m
log:
  format: json
`)

	cfg, err := config.Load(path, newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "https://portal.school.edu/api", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 4, cfg.Request.RetryAttempts)
	assert.Equal(t, time.Minute, cfg.Auth.RevalidateInterval)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2*time.Second, cfg.Request.RetryBase, "unset keys keep flag defaults")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "base_url: https://portal.school.edu/api\nrequest:\n  timeout: 3s\n")

	cfg, err := config.Load(path, newFlags(t, "--base-url", "https://other.school.edu", "--retry-attempts", "0", "--metrics-addr", ":9100"))
	require.NoError(t, err)
	assert.Equal(t, "https://other.school.edu", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 0, cfg.Request.RetryAttempts)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := config.Load(path, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	errutil.AssertErrorContext(t, err, "path", path)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "base_url: [unterminated")
	_, err := config.Load(path, nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"relative base url", func(c *config.Config) { c.BaseURL = "/api" }},
		{"ftp base url", func(c *config.Config) { c.BaseURL = "ftp://portal" }},
		{"zero timeout", func(c *config.Config) { c.Request.Timeout = 0 }},
		{"negative retries", func(c *config.Config) { c.Request.RetryAttempts = -1 }},
		{"zero retry base", func(c *config.Config) { c.Request.RetryBase = 0 }},
		{"negative revalidate", func(c *config.Config) { c.Auth.RevalidateInterval = -time.Second }},
		{"unknown log format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"unknown log level", func(c *config.Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			errutil.AssertErrorCode(t, cfg.Validate(), "CONFIG_INVALID")
		})
	}

	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ExecutorConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 2, cfg.ExecutorConfig("ua").RetryAttempts)

	cfg.Request.RetryAttempts = 0
	ec := cfg.ExecutorConfig("ua")
	assert.Negative(t, ec.RetryAttempts, "zero retries must not fall back to the executor default")
	assert.Equal(t, "ua", ec.UserAgent)
}

func TestConfig_SessionsDir(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Dir = "/tmp/sessions"
	dir, err := cfg.SessionsDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sessions", dir)

	t.Setenv("XDG_STATE_HOME", "/state")
	cfg.Session.Dir = ""
	dir, err = cfg.SessionsDir()
	require.NoError(t, err)
	assert.Equal(t, "/state/edusphere/sessions", dir)
}
