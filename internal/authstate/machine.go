// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package authstate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/portal"
	"github.com/edusphere/portal/internal/request"
	"github.com/edusphere/portal/internal/session"
	"github.com/edusphere/portal/pkg/errutil"
)

// Defaults.
const (
	DefaultRevalidateInterval = 5 * time.Minute
	DefaultSubscriberBuffer   = 16
)

// Remote is the identity service. Implemented by *portal.Client.
type Remote interface {
	Login(ctx context.Context, role identity.Role, email, password string) (*portal.LoginResult, error)
	CheckAuth(ctx context.Context, token string, fallback identity.Role) (identity.Identity, error)
	Logout(ctx context.Context, token string) error
	SignupStudent(ctx context.Context, in portal.StudentSignup) (*identity.Student, error)
}

// SessionStore persists the session record. Implemented by *session.Store.
type SessionStore interface {
	Load() (session.Record, error)
	Save(rec session.Record) error
	Clear() error
	PurgeLegacy() error
}

// Option configures a Machine.
type Option func(*Machine)

// WithRevalidateInterval sets how often an authenticated session is
// rechecked. Zero or negative disables revalidation.
func WithRevalidateInterval(d time.Duration) Option {
	return func(m *Machine) {
		m.interval = d
	}
}

// WithLogger sets the machine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Machine is the auth state machine. All identity and token writes to the
// session store go through it.
type Machine struct {
	remote   Remote
	store    SessionStore
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	ready bool
	// hint is the cached identity found at startup. It never gates access.
	hint identity.Identity
	// generation is bumped by every committed transition. A check that
	// started under an older generation is discarded.
	generation uint64
	// epoch is bumped by logout, SetIdentity, signup and Close. A login
	// that started under an older epoch is discarded.
	epoch   uint64
	closed  bool
	subs    map[int]chan Event
	nextSub int

	stopRevalidate context.CancelFunc
	loops          sync.WaitGroup
	checking       atomic.Int32
	logins         atomic.Int32
}

// New creates a Machine in the Checking phase. Call Initialize to settle it.
func New(remote Remote, store SessionStore, opts ...Option) (*Machine, error) {
	if remote == nil {
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("remote is required")
	}
	if store == nil {
		return nil, oops.Code("AUTH_MACHINE_INVALID").Errorf("session store is required")
	}
	m := &Machine{
		remote:   remote,
		store:    store,
		interval: DefaultRevalidateInterval,
		logger:   slog.Default(),
		state:    State{Phase: PhaseChecking},
		subs:     map[int]chan Event{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether a check or explicit operation has settled at least
// once. Access decisions must wait until it is true.
func (m *Machine) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Hint returns the identity cached by a previous session, if any. It is
// unverified and only suitable for optimistic display.
func (m *Machine) Hint() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hint
}

// Subscribe returns a channel of transition events and a function that
// ends the subscription. Events that do not fit the buffer are dropped.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Event, DefaultSubscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
}

// LoadHint removes legacy keys and returns the cached identity without
// contacting the service. The result is unverified and never gates access.
// A corrupted record is cleared.
func (m *Machine) LoadHint() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.PurgeLegacy(); err != nil {
		errutil.LogWarn(m.logger, "failed to purge legacy session keys", err)
	}

	rec, err := m.store.Load()
	if err != nil {
		errutil.LogWarn(m.logger, "failed to load cached session", err)
	}
	if rec.Identity != nil {
		m.hint = rec.Identity
	}
	return m.hint
}

// Initialize loads the cached identity as a hint and runs a live check.
func (m *Machine) Initialize(ctx context.Context) State {
	m.LoadHint()
	return m.CheckAuth(ctx)
}

// CheckAuth validates the stored session with the identity service and
// returns the settled state. Any failure clears the session and settles
// Unauthenticated. It never returns an error.
func (m *Machine) CheckAuth(ctx context.Context) State {
	return m.check(ctx, true)
}

func (m *Machine) check(ctx context.Context, explicit bool) State {
	m.checking.Add(1)
	defer m.checking.Add(-1)

	m.mu.Lock()
	if m.closed {
		defer m.mu.Unlock()
		return m.state
	}
	wasAuthenticated := m.state.Phase == PhaseAuthenticated || m.hint != nil
	if explicit && m.state.Phase != PhaseChecking {
		m.commit(State{Phase: PhaseChecking}, EventChecking)
	}
	gen := m.generation
	rec, err := m.store.Load()
	if err != nil {
		errutil.LogWarn(m.logger, "failed to load session for check", err)
	}
	m.mu.Unlock()

	var fallback identity.Role
	if rec.Identity != nil {
		fallback = rec.Identity.Role()
	}
	id, err := m.remote.CheckAuth(ctx, rec.Token, fallback)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.generation {
		RecordCheck(checkDiscarded)
		m.logger.Debug("discarding stale auth check", "explicit", explicit)
		return m.state
	}

	if err == nil {
		RecordCheck(checkOK)
		if saveErr := m.store.Save(session.Record{Identity: id, Token: rec.Token}); saveErr != nil {
			errutil.LogError(m.logger, "failed to persist checked session", saveErr)
		}
		m.hint = nil
		m.commit(State{Phase: PhaseAuthenticated, Identity: id}, EventAuthenticated)
		return m.state
	}

	RecordCheck(checkFailed)
	if ctx.Err() != nil {
		// The caller gave up; the stored session is neither confirmed nor refuted.
		m.commit(State{Phase: PhaseUnauthenticated, LastError: failureFrom(err)}, EventCheckFailed)
		return m.state
	}

	if clearErr := m.store.Clear(); clearErr != nil {
		errutil.LogError(m.logger, "failed to clear session after failed check", clearErr)
	}
	m.hint = nil

	failure := failureFrom(err)
	event := EventCheckFailed
	kind, _ := request.KindOf(err)
	switch {
	case kind == request.KindAuthRequired && wasAuthenticated:
		event = EventSessionExpired
	case kind == request.KindAuthRequired:
		// Nobody was signed in; there is nothing to report.
		failure = nil
	case kind.Retryable():
		event = EventNetworkError
	}
	errutil.LogWarn(m.logger, "auth check failed", err)
	m.commit(State{Phase: PhaseUnauthenticated, LastError: failure}, event)
	return m.state
}

// Login signs in with role-scoped credentials. A failed login settles
// Unauthenticated with the server's message in LastError and returns the
// failure. Concurrent logins are not coalesced; the last to resolve wins.
func (m *Machine) Login(ctx context.Context, email, password string, role identity.Role) error {
	m.logins.Add(1)
	defer m.logins.Add(-1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return oops.Code("AUTH_MACHINE_CLOSED").Errorf("auth machine is closed")
	}
	epoch := m.epoch
	m.commit(State{Phase: PhaseChecking}, EventLoginStarted)
	m.mu.Unlock()

	res, err := m.remote.Login(ctx, role, email, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || epoch != m.epoch {
		m.logger.Debug("discarding superseded login", "role", role)
		return oops.Code("AUTH_LOGIN_SUPERSEDED").
			With("role", role).
			Errorf("login was superseded by a later transition")
	}

	if err != nil {
		if clearErr := m.store.Clear(); clearErr != nil {
			errutil.LogError(m.logger, "failed to clear session after failed login", clearErr)
		}
		m.hint = nil
		m.commit(State{Phase: PhaseUnauthenticated, LastError: failureFrom(err)}, EventLoginFailed)
		return oops.Code("AUTH_LOGIN_FAILED").
			With("role", role).
			Wrap(err)
	}

	if saveErr := m.store.Save(session.Record{Identity: res.Identity, Token: res.Token}); saveErr != nil {
		errutil.LogError(m.logger, "failed to persist session after login", saveErr)
	}
	m.hint = nil
	m.commit(State{Phase: PhaseAuthenticated, Identity: res.Identity}, EventLoginSucceeded)
	m.logger.Info("login succeeded", "role", res.Identity.Role(), "user_id", res.Identity.Base().ID)
	return nil
}

// Logout ends the session locally and then tells the identity service.
// The remote call is best effort; its failure is only logged.
func (m *Machine) Logout(ctx context.Context) error {
	m.mu.Lock()
	rec, loadErr := m.store.Load()
	if loadErr != nil {
		errutil.LogWarn(m.logger, "failed to load session for logout", loadErr)
	}
	clearErr := m.store.Clear()
	m.hint = nil
	m.epoch++
	if !m.closed {
		m.commit(State{Phase: PhaseUnauthenticated}, EventLoggedOut)
	}
	m.mu.Unlock()

	if err := m.remote.Logout(ctx, rec.Token); err != nil {
		errutil.LogWarn(m.logger, "remote logout failed", err)
	}

	if clearErr != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").Wrap(clearErr)
	}
	return nil
}

// SetIdentity replaces the signed-in identity without a round trip. A nil
// identity clears the session.
func (m *Machine) SetIdentity(_ context.Context, id identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return oops.Code("AUTH_MACHINE_CLOSED").Errorf("auth machine is closed")
	}
	if id == nil {
		return m.clearIdentityLocked()
	}
	return m.setIdentityLocked(id, EventIdentitySet)
}

// Signup registers a student. When the service returns the new account the
// machine signs it in. Otherwise only LastError changes, except that a
// machine nobody is checking settles Unauthenticated.
func (m *Machine) Signup(ctx context.Context, in portal.StudentSignup) (*identity.Student, error) {
	student, err := m.remote.SignupStudent(ctx, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, oops.Code("AUTH_MACHINE_CLOSED").Errorf("auth machine is closed")
	}

	if err != nil {
		m.noteLocked(failureFrom(err), EventSignupFailed)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("email", in.Email).
			Wrap(err)
	}
	if student == nil {
		m.noteLocked(nil, EventSignupSucceeded)
		return nil, nil
	}
	if err := m.setIdentityLocked(student, EventSignupSucceeded); err != nil {
		return student, err
	}
	return student, nil
}

func (m *Machine) setIdentityLocked(id identity.Identity, event EventType) error {
	token := ""
	rec, err := m.store.Load()
	if err != nil {
		errutil.LogWarn(m.logger, "failed to load session", err)
	}
	if identity.Equal(rec.Identity, id) {
		token = rec.Token
	}

	m.epoch++
	m.hint = nil
	saveErr := m.store.Save(session.Record{Identity: id, Token: token})
	m.commit(State{Phase: PhaseAuthenticated, Identity: id}, event)
	if saveErr != nil {
		return oops.Code("AUTH_SET_IDENTITY_FAILED").Wrap(saveErr)
	}
	return nil
}

func (m *Machine) clearIdentityLocked() error {
	m.epoch++
	m.hint = nil
	clearErr := m.store.Clear()
	m.commit(State{Phase: PhaseUnauthenticated}, EventIdentityCleared)
	if clearErr != nil {
		return oops.Code("AUTH_SET_IDENTITY_FAILED").Wrap(clearErr)
	}
	return nil
}

// Close stops revalidation and ends every subscription. It waits for the
// revalidation loop to exit.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	m.epoch++
	m.stopRevalidationLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.loops.Wait()
}

// commit applies next, emits the event and starts or stops revalidation.
// Callers hold m.mu.
func (m *Machine) commit(next State, event EventType) {
	from := m.state.Phase
	if next.Phase != PhaseAuthenticated {
		next.Identity = nil
	}
	m.state = next
	m.generation++
	if next.Phase != PhaseChecking {
		m.ready = true
	}
	RecordTransition(from, next.Phase, event)
	SetAuthenticated(next.Phase == PhaseAuthenticated)
	m.publishLocked(Event{Type: event, From: from, To: next.Phase, State: next})

	if next.Phase == PhaseAuthenticated {
		m.startRevalidationLocked()
	} else {
		m.stopRevalidationLocked()
	}
}

// noteLocked records the outcome of an operation that does not change who
// is signed in. While a check or login is in flight the outcome is attached
// to the unsettled state without bumping the generation, so that operation
// still settles the machine. Callers hold m.mu.
func (m *Machine) noteLocked(failure *Failure, event EventType) {
	if m.state.Phase != PhaseChecking {
		next := m.state
		next.LastError = failure
		m.commit(next, event)
		return
	}
	if m.checking.Load() > 0 || m.logins.Load() > 0 {
		m.state.LastError = failure
		m.publishLocked(Event{Type: event, From: PhaseChecking, To: PhaseChecking, State: m.state})
		return
	}
	// Nothing will settle the machine; nobody has been verified.
	m.commit(State{Phase: PhaseUnauthenticated, LastError: failure}, event)
}

func (m *Machine) publishLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			RecordDroppedEvent()
		}
	}
}

func (m *Machine) startRevalidationLocked() {
	if m.stopRevalidate != nil || m.closed || m.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopRevalidate = cancel
	m.loops.Add(1)
	go m.revalidate(ctx, m.interval)
}

func (m *Machine) stopRevalidationLocked() {
	if m.stopRevalidate == nil {
		return
	}
	m.stopRevalidate()
	m.stopRevalidate = nil
}

func (m *Machine) revalidate(ctx context.Context, interval time.Duration) {
	defer m.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.checking.Load() > 0 {
				RecordCheck(checkSkipped)
				continue
			}
			m.check(ctx, false)
		}
	}
}
