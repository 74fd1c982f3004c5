// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package xdg resolves XDG Base Directory paths for the portal client.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "edusphere"

// ConfigFile is the default config file name inside ConfigDir.
const ConfigFile = "portal.yaml"

func baseDir(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_HOME_UNSET").
			With("env", env).
			Errorf("neither %s nor HOME is set", env)
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/edusphere, falling back to ~/.config.
func ConfigDir() (string, error) {
	return baseDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/edusphere, falling back to ~/.local/state.
func StateDir() (string, error) {
	return baseDir("XDG_STATE_HOME", ".local", "state")
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFile), nil
}

// SessionsDir returns the directory holding per-origin session files.
func SessionsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions"), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").
			With("path", path).
			Wrap(err)
	}
	return nil
}
