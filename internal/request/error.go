// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package request

import (
	"errors"
	"fmt"
)

// Error is a classified request failure.
type Error struct {
	Kind Kind
	// Status is the HTTP status, 0 when no response arrived.
	Status int
	// Message is the server-provided message, if any.
	Message string
	// Fields holds field-level validation problems.
	Fields map[string]string
	// Attempts is the number of attempts made before giving up.
	Attempts int
	// Err is the underlying cause.
	Err error

	// unsent marks failures where the request never reached the server.
	unsent bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// DisplayMessage returns the server message, or the kind's human message.
func (e *Error) DisplayMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Message()
}

// AsError extracts a classified failure from err.
func AsError(err error) (*Error, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// KindOf returns the kind of a classified failure.
func KindOf(err error) (Kind, bool) {
	rerr, ok := AsError(err)
	if !ok {
		return "", false
	}
	return rerr.Kind, true
}

// IsKind reports whether err is a classified failure of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}
