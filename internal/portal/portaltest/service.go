// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package portaltest provides an in-process fake of the portal identity
// service for tests.
package portaltest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/edusphere/portal/internal/identity"
)

// InvalidCredentials is the message returned for a failed login.
const InvalidCredentials = "Invalid credentials"

// SessionCookie is the cookie the fake sets alongside the bearer token.
const SessionCookie = "portal_session"

type account struct {
	password string
	user     identity.Wire
}

// TB is the subset of testing.TB the fake uses. GinkgoT() satisfies it.
type TB interface {
	Helper()
	Cleanup(func())
	Fatalf(format string, args ...any)
}

// Service is a fake identity service backed by httptest.Server.
type Service struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]account
	sessions    map[string]identity.Wire
	calls       map[string]int
	failures    map[string][]int
	partitioned bool
	holdCheck   chan struct{}
	entered     chan struct{}
	omitToken   bool
	nextID      int64
}

// New starts a fake service that is closed when the test ends.
func New(t TB) *Service {
	t.Helper()
	s := &Service{
		accounts: map[string]account{},
		sessions: map[string]identity.Wire{},
		calls:    map[string]int{},
		failures: map[string][]int{},
		nextID:   1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/{role}", s.handleLogin)
	mux.HandleFunc("GET /check-auth", s.handleCheckAuth)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("POST /signup/student", s.handleSignup)

	s.Server = httptest.NewServer(s.intercept(mux))
	t.Cleanup(func() {
		s.ReleaseCheckAuth()
		s.Close()
	})
	return s
}

// AddAccount registers a user that can log in with password under role.
func (s *Service) AddAccount(role identity.Role, user identity.Wire, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Role == "" {
		user.Role = string(role)
	}
	s.accounts[accountKey(role, user.Email)] = account{password: password, user: user}
}

// FailNext makes the next times requests to path answer with status.
func (s *Service) FailNext(path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range times {
		s.failures[path] = append(s.failures[path], status)
	}
}

// SetPartitioned drops every connection without a response while true.
func (s *Service) SetPartitioned(partitioned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitioned = partitioned
}

// OmitToken makes logins rely on the session cookie only.
func (s *Service) OmitToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitToken = omit
}

// HoldCheckAuth blocks check-auth requests until ReleaseCheckAuth is
// called. The returned channel receives once per request that is held.
func (s *Service) HoldCheckAuth() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdCheck = make(chan struct{})
	s.entered = make(chan struct{}, 16)
	return s.entered
}

// ReleaseCheckAuth lets held check-auth requests proceed.
func (s *Service) ReleaseCheckAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holdCheck != nil {
		close(s.holdCheck)
		s.holdCheck = nil
	}
}

// RevokeAll invalidates every issued session.
func (s *Service) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]identity.Wire{}
}

// ActiveSessions returns the number of live sessions.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Calls returns how many requests reached path, injected failures included.
func (s *Service) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Service) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		partitioned := s.partitioned
		var status int
		if queued := s.failures[r.URL.Path]; len(queued) > 0 {
			status = queued[0]
			s.failures[r.URL.Path] = queued[1:]
		}
		s.mu.Unlock()

		if partitioned {
			dropConnection(w)
			return
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"success": false, "message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	role := identity.Role(r.PathValue("role"))
	if !role.IsValid() {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Unknown role"})
		return
	}

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Malformed request"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[accountKey(role, creds.Email)]
	if !ok || acct.password != creds.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": InvalidCredentials})
		return
	}
	token := newToken()
	s.sessions[token] = acct.user
	omit := s.omitToken
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	body := map[string]any{"success": true, "message": "Login successful", "user": acct.user}
	if !omit {
		body["auth_token"] = token
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Service) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hold, entered := s.holdCheck, s.entered
	s.mu.Unlock()
	if hold != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	token := sessionToken(r)
	s.mu.Lock()
	user, ok := s.sessions[token]
	s.mu.Unlock()

	if token == "" || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "authenticated": false, "message": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "authenticated": true, "user": user})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name         string   `json:"name"`
		Email        string   `json:"email"`
		Password     string   `json:"password"`
		RollID       string   `json:"roll_id"`
		StudentClass string   `json:"student_class"`
		Subjects     []string `json:"subjects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Malformed request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey(identity.RoleStudent, in.Email)
	if _, exists := s.accounts[key]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "Email already registered"})
		return
	}

	s.nextID++
	user := identity.Wire{
		ID:           s.nextID,
		Name:         in.Name,
		Email:        in.Email,
		Role:         string(identity.RoleStudent),
		RollID:       in.RollID,
		StudentClass: in.StudentClass,
		Subjects:     in.Subjects,
	}
	s.accounts[key] = account{password: in.Password, user: user}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Registration successful", "student": user})
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func accountKey(role identity.Role, email string) string {
	return string(role) + "|" + strings.ToLower(email)
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
