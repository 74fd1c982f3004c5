// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/session"
	"github.com/edusphere/portal/pkg/errutil"
)

func newStudent(t *testing.T) identity.Identity {
	t.Helper()
	return &identity.Student{
		Profile:  identity.Profile{ID: 7, Name: "Alice", Email: "alice@school.edu"},
		RollID:   "R-7",
		Class:    "10A",
		Subjects: []string{"math", "art"},
	}
}

func newStore(t *testing.T) (*session.Store, *session.MemoryStorage) {
	t.Helper()
	storage := session.NewMemoryStorage()
	store, err := session.NewStore(storage)
	require.NoError(t, err)
	return store, storage
}

func TestNewStore_RequiresStorage(t *testing.T) {
	_, err := session.NewStore(nil)
	errutil.AssertErrorCode(t, err, "SESSION_STORAGE_INVALID")
}

func TestStore_SaveLoad(t *testing.T) {
	store, _ := newStore(t)
	want := newStudent(t)

	require.NoError(t, store.Save(session.Record{Identity: want, Token: "tok"}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, want, got.Identity)
}

func TestStore_LoadEmpty(t *testing.T) {
	store, _ := newStore(t)

	rec, err := store.Load()
	require.NoError(t, err)
	assert.True(t, rec.Empty())
}

func TestStore_SaveWithoutTokenRemovesStaleToken(t *testing.T) {
	store, storage := newStore(t)
	require.NoError(t, store.Save(session.Record{Identity: newStudent(t), Token: "old"}))

	require.NoError(t, store.Save(session.Record{Identity: newStudent(t)}))

	_, ok, _ := storage.Get(session.KeyToken)
	assert.False(t, ok)
}

func TestStore_SaveRequiresIdentity(t *testing.T) {
	store, _ := newStore(t)

	err := store.Save(session.Record{Token: "tok"})
	errutil.AssertErrorCode(t, err, "SESSION_RECORD_INVALID")
}

func TestStore_LoadDiscardsCorruptRecords(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", "{{{"},
		{"sentinel string", `"[object Object]"`},
		{"missing id", `{"name":"x","email":"x@y.z","role":"student"}`},
		{"unknown role", `{"id":1,"name":"x","email":"x@y.z","role":"janitor"}`},
		{"no role", `{"id":1,"name":"x","email":"x@y.z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, storage := newStore(t)
			require.NoError(t, storage.Set(session.KeyIdentity, tt.blob))
			require.NoError(t, storage.Set(session.KeyToken, "tok"))

			rec, err := store.Load()
			require.NoError(t, err)
			assert.True(t, rec.Empty())
			assert.Empty(t, storage.Keys(), "corrupt record must be cleared")
		})
	}
}

func TestStore_LoadDiscardsTokenWithoutIdentity(t *testing.T) {
	store, storage := newStore(t)
	require.NoError(t, storage.Set(session.KeyToken, "tok"))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.True(t, rec.Empty())
	_, ok, _ := storage.Get(session.KeyToken)
	assert.False(t, ok)
}

func TestStore_ClearRemovesLegacyKeysAndIsIdempotent(t *testing.T) {
	store, storage := newStore(t)
	require.NoError(t, store.Save(session.Record{Identity: newStudent(t), Token: "tok"}))
	for _, k := range []string{"user", "token", "isAuthenticated", "authToken", "currentUser"} {
		require.NoError(t, storage.Set(k, "legacy"))
	}

	require.NoError(t, store.Clear())
	assert.Empty(t, storage.Keys())

	require.NoError(t, store.Clear())
	assert.Empty(t, storage.Keys())
}

func TestStore_PurgeLegacyKeepsCurrentKeys(t *testing.T) {
	store, storage := newStore(t)
	require.NoError(t, store.Save(session.Record{Identity: newStudent(t), Token: "tok"}))
	require.NoError(t, storage.Set("currentUser", "legacy"))

	require.NoError(t, store.PurgeLegacy())

	assert.ElementsMatch(t, []string{session.KeyIdentity, session.KeyToken, session.KeyTabID}, storage.Keys())
}

func TestStore_TabIDStable(t *testing.T) {
	store, storage := newStore(t)

	first := store.TabID()
	assert.Len(t, first, 26)
	assert.Equal(t, first, store.TabID())

	require.NoError(t, store.Clear())
	assert.Equal(t, first, store.TabID())

	persisted, ok, _ := storage.Get(session.KeyTabID)
	assert.True(t, ok)
	assert.Equal(t, first, persisted)
}

func TestStore_TabIDDiffersPerStore(t *testing.T) {
	a, _ := newStore(t)
	b, _ := newStore(t)
	assert.NotEqual(t, a.TabID(), b.TabID())
}
