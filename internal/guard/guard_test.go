// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/pkg/errutil"
)

var student = &identity.Student{Profile: identity.Profile{ID: 1, Name: "S", Email: "s@school.edu"}}

func authenticated(id identity.Identity) authstate.State {
	return authstate.State{Phase: authstate.PhaseAuthenticated, Identity: id}
}

func TestEvaluate(t *testing.T) {
	principal := &identity.Principal{Profile: identity.Profile{ID: 2, Name: "P", Email: "p@school.edu"}}

	tests := []struct {
		name      string
		state     authstate.State
		ready     bool
		requested string
		roles     []identity.Role
		want      guard.Decision
	}{
		{
			name:  "not ready waits",
			state: authstate.State{Phase: authstate.PhaseUnauthenticated},
			want:  guard.Decision{Outcome: guard.Wait},
		},
		{
			name:  "checking waits",
			state: authstate.State{Phase: authstate.PhaseChecking},
			ready: true,
			want:  guard.Decision{Outcome: guard.Wait},
		},
		{
			name:      "unauthenticated redirects to login with next",
			state:     authstate.State{Phase: authstate.PhaseUnauthenticated},
			ready:     true,
			requested: "/dashboard/student/grades?term=2",
			want:      guard.Decision{Outcome: guard.Redirect, Location: "/login?next=%2Fdashboard%2Fstudent%2Fgrades%3Fterm%3D2"},
		},
		{
			name:      "role mismatch redirects to own landing page",
			state:     authenticated(student),
			ready:     true,
			requested: "/dashboard/faculty",
			roles:     []identity.Role{identity.RoleFaculty},
			want:      guard.Decision{Outcome: guard.Redirect, Location: "/dashboard/student"},
		},
		{
			name:  "matching role allows",
			state: authenticated(principal),
			ready: true,
			roles: []identity.Role{identity.RoleAdmin, identity.RolePrincipal},
			want:  guard.Decision{Outcome: guard.Allow},
		},
		{
			name:  "no restriction allows any identity",
			state: authenticated(student),
			ready: true,
			want:  guard.Decision{Outcome: guard.Allow},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.Evaluate(tt.state, tt.ready, tt.requested, tt.roles...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLandingPath(t *testing.T) {
	for _, role := range identity.AllRoles() {
		assert.Equal(t, "/dashboard/"+string(role), guard.LandingPath(role))
	}
	assert.Equal(t, guard.LoginEntry, guard.LandingPath(identity.Role("janitor")))
}

func TestLoginPath(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/dashboard/admin", "/login?next=%2Fdashboard%2Fadmin"},
		{"", "/login"},
		{"/login", "/login"},
		{"/login?next=%2Fx", "/login"},
		{"https://evil.example/x", "/login"},
		{"//evil.example/x", "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.LoginPath(tt.next))
		})
	}
}

func TestNextFromLogin(t *testing.T) {
	assert.Equal(t, "/dashboard/admin", guard.NextFromLogin(guard.LoginPath("/dashboard/admin"), "/"))
	assert.Equal(t, "/", guard.NextFromLogin("/login?next=//evil.example", "/"))
	assert.Equal(t, "/", guard.NextFromLogin("/login", "/"))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "wait", guard.Decision{Outcome: guard.Wait}.String())
	assert.Equal(t, "redirect /login", guard.Decision{Outcome: guard.Redirect, Location: "/login"}.String())
}

func TestTable_Match(t *testing.T) {
	table := guard.DefaultTable()

	tests := []struct {
		path      string
		roles     []identity.Role
		protected bool
	}{
		{"/dashboard/student", []identity.Role{identity.RoleStudent}, true},
		{"/dashboard/student/grades/2026", []identity.Role{identity.RoleStudent}, true},
		{"/dashboard/faculty/classes", []identity.Role{identity.RoleFaculty}, true},
		{"/dashboard/admin", []identity.Role{identity.RoleAdmin}, true},
		{"/dashboard", nil, true},
		{"/dashboard/studentish", nil, true},
		{"/profile/settings", nil, true},
		{"/", nil, false},
		{"/login", nil, false},
		{"/about/dashboard", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			roles, protected := table.Match(tt.path)
			assert.Equal(t, tt.protected, protected)
			assert.Equal(t, tt.roles, roles)
		})
	}
}

func TestNewTable_Invalid(t *testing.T) {
	_, err := guard.NewTable(guard.Rule{})
	errutil.AssertErrorCode(t, err, "GUARD_RULE_INVALID")

	_, err = guard.NewTable(guard.Rule{Patterns: []string{"/x"}, Roles: []identity.Role{"janitor"}})
	errutil.AssertErrorCode(t, err, "GUARD_RULE_INVALID")

	_, err = guard.NewTable(guard.Rule{Patterns: []string{"/x/[unterminated"}})
	errutil.AssertErrorCode(t, err, "GUARD_RULE_INVALID")
}

type staticSource struct {
	state authstate.State
	ready bool
}

func (s staticSource) State() authstate.State { return s.state }
func (s staticSource) Ready() bool            { return s.ready }

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name     string
		src      staticSource
		path     string
		status   int
		location string
	}{
		{"public path passes while checking", staticSource{state: authstate.State{Phase: authstate.PhaseChecking}}, "/", http.StatusTeapot, ""},
		{"protected path waits", staticSource{state: authstate.State{Phase: authstate.PhaseChecking}}, "/dashboard/student", http.StatusServiceUnavailable, ""},
		{"anonymous redirected to login", staticSource{state: authstate.State{Phase: authstate.PhaseUnauthenticated}, ready: true}, "/dashboard/student", http.StatusSeeOther, "/login?next=%2Fdashboard%2Fstudent"},
		{"wrong role redirected home", staticSource{state: authenticated(student), ready: true}, "/dashboard/faculty", http.StatusSeeOther, "/dashboard/student"},
		{"own dashboard allowed", staticSource{state: authenticated(student), ready: true}, "/dashboard/student/grades", http.StatusTeapot, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := guard.Middleware(tt.src, nil)(ok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
				assert.Contains(t, rec.Body.String(), "Loading")
			}
		})
	}
}
