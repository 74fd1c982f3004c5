// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package authstate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/portal"
	"github.com/edusphere/portal/internal/request"
	"github.com/edusphere/portal/internal/session"
)

var (
	alice = &identity.Student{
		Profile: identity.Profile{ID: 7, Name: "Alice", Email: "alice@school.edu"},
		RollID:  "R-7",
		Class:   "10A",
	}
	frank = &identity.Faculty{
		Profile:    identity.Profile{ID: 9, Name: "Frank", Email: "frank@school.edu"},
		Department: "Science",
	}
)

// fakeRemote answers from per-test functions. Unset functions reject.
type fakeRemote struct {
	mu        sync.Mutex
	login     func(ctx context.Context, role identity.Role, email, password string) (*portal.LoginResult, error)
	check     func(ctx context.Context, token string) (identity.Identity, error)
	logout    func(ctx context.Context, token string) error
	signup    func(ctx context.Context, in portal.StudentSignup) (*identity.Student, error)
	checks    atomic.Int32
	logouts   atomic.Int32
	tokens    []string
	fallbacks []identity.Role
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeRemote) Login(ctx context.Context, role identity.Role, email, password string) (*portal.LoginResult, error) {
	f.mu.Lock()
	fn := f.login
	f.mu.Unlock()
	if fn == nil {
		return nil, &request.Error{Kind: request.KindValidation, Status: 401, Message: "Invalid credentials"}
	}
	return fn(ctx, role, email, password)
}

func (f *fakeRemote) CheckAuth(ctx context.Context, token string, fallback identity.Role) (identity.Identity, error) {
	f.checks.Add(1)
	f.mu.Lock()
	fn := f.check
	f.tokens = append(f.tokens, token)
	f.fallbacks = append(f.fallbacks, fallback)
	f.mu.Unlock()
	if fn == nil {
		return nil, &request.Error{Kind: request.KindAuthRequired, Status: 401}
	}
	return fn(ctx, token)
}

func (f *fakeRemote) Logout(ctx context.Context, token string) error {
	f.logouts.Add(1)
	f.mu.Lock()
	fn := f.logout
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, token)
}

func (f *fakeRemote) SignupStudent(ctx context.Context, in portal.StudentSignup) (*identity.Student, error) {
	f.mu.Lock()
	fn := f.signup
	f.mu.Unlock()
	if fn == nil {
		return nil, &request.Error{Kind: request.KindValidation, Status: 409, Message: "Email already registered"}
	}
	return fn(ctx, in)
}

func (f *fakeRemote) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	return f.tokens[len(f.tokens)-1]
}

func (f *fakeRemote) lastFallback() identity.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fallbacks) == 0 {
		return ""
	}
	return f.fallbacks[len(f.fallbacks)-1]
}

func loginAs(id identity.Identity, token string) func(context.Context, identity.Role, string, string) (*portal.LoginResult, error) {
	return func(context.Context, identity.Role, string, string) (*portal.LoginResult, error) {
		return &portal.LoginResult{Identity: id, Token: token}, nil
	}
}

func checkAs(id identity.Identity) func(context.Context, string) (identity.Identity, error) {
	return func(context.Context, string) (identity.Identity, error) {
		return id, nil
	}
}

// gate blocks a fake call until released and reports when it is entered.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) awaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("call never started")
	}
}

type fixture struct {
	remote  *fakeRemote
	storage *session.MemoryStorage
	store   *session.Store
	machine *authstate.Machine
}

func newFixture(t *testing.T, opts ...authstate.Option) *fixture {
	t.Helper()
	storage := session.NewMemoryStorage()
	store, err := session.NewStore(storage)
	require.NoError(t, err)
	remote := &fakeRemote{}
	opts = append([]authstate.Option{authstate.WithRevalidateInterval(0)}, opts...)
	m, err := authstate.New(remote, store, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return &fixture{remote: remote, storage: storage, store: store, machine: m}
}

// drain collects the event types buffered on ch.
func drain(ch <-chan authstate.Event) []authstate.EventType {
	var types []authstate.EventType
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return types
			}
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}
