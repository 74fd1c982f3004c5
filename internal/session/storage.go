// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Storage is an origin-scoped string key/value store.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

// Get returns the value stored under key.
func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (m *MemoryStorage) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Keys returns the stored keys, for tests and diagnostics.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// Origin normalizes a service URL to scheme://host[:port].
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", oops.Code("SESSION_ORIGIN_INVALID").
			With("url", rawURL).
			Wrap(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", oops.Code("SESSION_ORIGIN_INVALID").
			With("url", rawURL).
			Errorf("url has no origin")
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// FileStorage keeps one YAML document per origin. Every write replaces the
// file atomically and the file is only readable by its owner.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	origin string
}

// document is the on-disk form.
type document struct {
	Origin string            `yaml:"origin"`
	Values map[string]string `yaml:"values"`
}

// NewFileStorage creates a FileStorage for origin under dir. The directory
// is created on first write.
func NewFileStorage(dir, origin string) (*FileStorage, error) {
	if dir == "" {
		return nil, oops.Code("SESSION_STORAGE_INVALID").Errorf("session directory is required")
	}
	if origin == "" {
		return nil, oops.Code("SESSION_STORAGE_INVALID").Errorf("origin is required")
	}
	sum := sha256.Sum256([]byte(origin))
	name := hex.EncodeToString(sum[:8]) + ".yaml"
	return &FileStorage{path: filepath.Join(dir, name), origin: origin}, nil
}

// Path returns the backing file location.
func (f *FileStorage) Path() string {
	return f.path
}

// Get returns the value stored under key.
func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

// Set stores value under key.
func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.Values[key] = value
	return f.write(doc)
}

// Delete removes keys. The file is removed once it holds nothing.
func (f *FileStorage) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(doc.Values, k)
	}
	if len(doc.Values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("SESSION_STORAGE_WRITE_FAILED").
				With("path", f.path).
				Wrap(err)
		}
		return nil
	}
	return f.write(doc)
}

func (f *FileStorage) read() (document, error) {
	doc := document{Values: map[string]string{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, oops.Code("SESSION_STORAGE_READ_FAILED").
			With("path", f.path).
			Wrap(err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		// An unreadable document holds nothing worth keeping.
		return document{Values: map[string]string{}}, nil
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

func (f *FileStorage) write(doc document) error {
	doc.Origin = f.origin
	data, err := yaml.Marshal(doc)
	if err != nil {
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").Wrap(err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").
			With("path", dir).
			Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").
			With("path", dir).
			Wrap(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").With("path", tmpName).Wrap(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return oops.Code("SESSION_STORAGE_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}
