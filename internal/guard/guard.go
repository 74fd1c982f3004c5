// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package guard decides whether protected content may be shown for the
// current auth state.
package guard

import (
	"net/url"
	"strings"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/identity"
)

// LoginEntry is the login page.
const LoginEntry = "/login"

// Outcome is the kind of guard decision.
type Outcome string

// Outcomes.
const (
	// Wait means the auth state has not settled; show a neutral indicator.
	Wait Outcome = "wait"
	// Allow means the protected content may be shown.
	Allow Outcome = "allow"
	// Redirect means the caller must navigate to Decision.Location.
	Redirect Outcome = "redirect"
)

// Decision is the result of Evaluate.
type Decision struct {
	Outcome  Outcome
	Location string
}

func (d Decision) String() string {
	if d.Outcome == Redirect {
		return string(d.Outcome) + " " + d.Location
	}
	return string(d.Outcome)
}

// Source provides the auth state. Implemented by *authstate.Machine.
type Source interface {
	State() authstate.State
	Ready() bool
}

// Evaluate decides access to requested. roles restricts access to the
// listed roles; none means any signed-in identity. A role mismatch
// redirects to the identity's own landing page.
func Evaluate(st authstate.State, ready bool, requested string, roles ...identity.Role) Decision {
	if !ready || st.Phase == authstate.PhaseChecking {
		return Decision{Outcome: Wait}
	}
	if !st.Authenticated() {
		return Decision{Outcome: Redirect, Location: LoginPath(requested)}
	}
	role := st.Identity.Role()
	if len(roles) > 0 && !identity.ContainsRole(roles, role) {
		return Decision{Outcome: Redirect, Location: LandingPath(role)}
	}
	return Decision{Outcome: Allow}
}

// Check evaluates requested against src.
func Check(src Source, requested string, roles ...identity.Role) Decision {
	ready := src.Ready()
	return Evaluate(src.State(), ready, requested, roles...)
}

// LandingPath returns the default page of role.
func LandingPath(role identity.Role) string {
	switch role {
	case identity.RoleStudent:
		return "/dashboard/student"
	case identity.RoleFaculty:
		return "/dashboard/faculty"
	case identity.RolePrincipal:
		return "/dashboard/principal"
	case identity.RoleAdmin:
		return "/dashboard/admin"
	default:
		return LoginEntry
	}
}

// LoginPath returns the login page that returns to next after sign-in.
// Only local paths are preserved.
func LoginPath(next string) string {
	if !isLocalPath(next) || next == LoginEntry || strings.HasPrefix(next, LoginEntry+"?") {
		return LoginEntry
	}
	return LoginEntry + "?" + url.Values{"next": {next}}.Encode()
}

// NextFromLogin extracts the post-login destination from a login URL,
// falling back to fallback when none is usable.
func NextFromLogin(loginURL, fallback string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return fallback
	}
	next := u.Query().Get("next")
	if !isLocalPath(next) {
		return fallback
	}
	return next
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, `\`)
}
