// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package session

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/pkg/errutil"
)

// Storage keys.
const (
	KeyIdentity = "identity"
	KeyToken    = "auth_token"
	KeyTabID    = "tab_id"
)

// legacyKeys are written by older clients. They are never read, only removed.
var legacyKeys = []string{"user", "token", "isAuthenticated", "authToken", "currentUser"}

// Record is the persisted session. A nil Identity or empty Token is absent.
type Record struct {
	Identity identity.Identity
	Token    string
}

// Empty reports whether the record holds nothing.
func (r Record) Empty() bool {
	return r.Identity == nil && r.Token == ""
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report discarded records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store reads and writes the session record for one origin.
type Store struct {
	storage Storage
	logger  *slog.Logger

	mu           sync.Mutex
	tabID        string
	tabPersisted bool
}

// NewStore creates a Store on top of storage.
func NewStore(storage Storage, opts ...Option) (*Store, error) {
	if storage == nil {
		return nil, oops.Code("SESSION_STORAGE_INVALID").Errorf("storage is required")
	}
	s := &Store{
		storage: storage,
		logger:  slog.Default(),
		tabID:   ulid.Make().String(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Load returns the persisted record. A record that fails shape validation,
// or a token with no identity, is cleared and reported as empty.
func (s *Store) Load() (Record, error) {
	blob, hasIdentity, err := s.storage.Get(KeyIdentity)
	if err != nil {
		return Record{}, oops.Code("SESSION_STORE_READ_FAILED").With("key", KeyIdentity).Wrap(err)
	}
	token, hasToken, err := s.storage.Get(KeyToken)
	if err != nil {
		return Record{}, oops.Code("SESSION_STORE_READ_FAILED").With("key", KeyToken).Wrap(err)
	}

	if !hasIdentity {
		if hasToken {
			s.logger.Warn("discarding session token without identity")
			return Record{}, s.Clear()
		}
		return Record{}, nil
	}

	id, err := identity.Decode([]byte(blob), "")
	if err != nil {
		errutil.LogWarn(s.logger, "discarding corrupted session record", err)
		return Record{}, s.Clear()
	}
	return Record{Identity: id, Token: token}, nil
}

// Save persists rec. The identity is required; an empty token removes any
// stored token so the record never mixes two sessions.
func (s *Store) Save(rec Record) error {
	blob, err := identity.Encode(rec.Identity)
	if err != nil {
		return oops.Code("SESSION_RECORD_INVALID").Wrap(err)
	}
	if err := s.storage.Set(KeyIdentity, string(blob)); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("key", KeyIdentity).Wrap(err)
	}
	if rec.Token == "" {
		if err := s.storage.Delete(KeyToken); err != nil {
			return oops.Code("SESSION_STORE_WRITE_FAILED").With("key", KeyToken).Wrap(err)
		}
	} else if err := s.storage.Set(KeyToken, rec.Token); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("key", KeyToken).Wrap(err)
	}
	s.persistTabID()
	return nil
}

// Clear removes every session key, legacy keys included. It is safe to call
// in any state and more than once.
func (s *Store) Clear() error {
	keys := append([]string{KeyIdentity, KeyToken, KeyTabID}, legacyKeys...)
	if err := s.storage.Delete(keys...); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "clear").Wrap(err)
	}
	s.mu.Lock()
	s.tabPersisted = false
	s.mu.Unlock()
	return nil
}

// PurgeLegacy removes keys written by older clients.
func (s *Store) PurgeLegacy() error {
	if err := s.storage.Delete(legacyKeys...); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "purge legacy").Wrap(err)
	}
	return nil
}

// TabID returns the identifier of this store's lifetime. It is stable until
// the process exits and is not a security boundary.
func (s *Store) TabID() string {
	s.persistTabID()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabID
}

func (s *Store) persistTabID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabPersisted {
		return
	}
	if err := s.storage.Set(KeyTabID, s.tabID); err != nil {
		errutil.LogWarn(s.logger, "failed to persist tab id", err)
		return
	}
	s.tabPersisted = true
}
