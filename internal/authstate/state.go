// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package authstate owns the single source of truth for who is signed in.
//
// A Machine moves between three phases. Every operation settles into one of
// them, and responses from operations superseded by a later explicit
// transition are discarded.
package authstate

import (
	"errors"

	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/request"
)

// Phase is the authentication phase.
type Phase string

// Phases.
const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseChecking        Phase = "checking"
	PhaseAuthenticated   Phase = "authenticated"
)

func (p Phase) String() string {
	return string(p)
}

// Failure is the last error shown to the user.
type Failure struct {
	// Kind is empty when the operation was cancelled by the caller.
	Kind    request.Kind
	Message string
}

func (f *Failure) Error() string {
	if f.Kind == "" {
		return f.Message
	}
	return string(f.Kind) + ": " + f.Message
}

const cancelledMessage = "The request was cancelled."

// failureFrom turns an operation error into a display failure. Server
// messages are kept for validation and auth failures; transient failures
// use the kind's own message.
func failureFrom(err error) *Failure {
	rerr, ok := request.AsError(err)
	if !ok {
		var f *Failure
		if errors.As(err, &f) {
			return f
		}
		return &Failure{Message: cancelledMessage}
	}
	switch rerr.Kind {
	case request.KindValidation, request.KindAuthRequired:
		return &Failure{Kind: rerr.Kind, Message: rerr.DisplayMessage()}
	default:
		return &Failure{Kind: rerr.Kind, Message: rerr.Kind.Message()}
	}
}

// State is a snapshot of the machine.
type State struct {
	Phase Phase
	// Identity is non-nil exactly when Phase is PhaseAuthenticated.
	Identity  identity.Identity
	LastError *Failure
}

// Authenticated reports whether the snapshot holds a signed-in identity.
func (s State) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Identity != nil
}

// Role returns the signed-in role, or "" when not authenticated.
func (s State) Role() identity.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role()
}

// EventType names a transition.
type EventType string

// Event types.
const (
	EventChecking        EventType = "checking"
	EventAuthenticated   EventType = "authenticated"
	EventLoginStarted    EventType = "login_started"
	EventLoginSucceeded  EventType = "login_succeeded"
	EventLoginFailed     EventType = "login_failed"
	EventSessionExpired  EventType = "session_expired"
	EventNetworkError    EventType = "network_error"
	EventCheckFailed     EventType = "check_failed"
	EventLoggedOut       EventType = "logged_out"
	EventIdentitySet     EventType = "identity_set"
	EventIdentityCleared EventType = "identity_cleared"
	EventSignupSucceeded EventType = "signup_succeeded"
	EventSignupFailed    EventType = "signup_failed"
)

// Event is delivered to subscribers after each transition.
type Event struct {
	Type  EventType
	From  Phase
	To    Phase
	State State
}
