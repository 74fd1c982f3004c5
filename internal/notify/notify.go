// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package notify turns auth transitions into short user-facing notices.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/request"
)

// Level is the severity of a notice.
type Level string

// Levels.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level Level
	Title string
	Text  string
	Event authstate.EventType
}

// SessionExpiredText is shown when a signed-in session stops being valid.
const SessionExpiredText = "Your session has expired. Please sign in again."

// Map returns the notice for ev, or false when the event is not shown.
func Map(ev authstate.Event) (Notice, bool) {
	n := Notice{Event: ev.Type}
	switch ev.Type {
	case authstate.EventLoginSucceeded:
		n.Level, n.Title = LevelSuccess, "Signed in"
		n.Text = "Welcome back, " + identity.DisplayName(ev.State.Identity) + "!"
	case authstate.EventLoginFailed:
		n.Level, n.Title = LevelError, "Sign-in failed"
		n.Text = failureText(ev.State.LastError, "Unable to sign in. Please try again.")
	case authstate.EventSessionExpired:
		n.Level, n.Title = LevelError, "Session expired"
		n.Text = SessionExpiredText
	case authstate.EventNetworkError:
		n.Level, n.Title = LevelError, "Connection problem"
		n.Text = kindText(ev.State.LastError)
	case authstate.EventLoggedOut:
		n.Level, n.Title = LevelInfo, "Signed out"
		n.Text = "You have been signed out."
	case authstate.EventSignupSucceeded:
		n.Level, n.Title = LevelSuccess, "Registration complete"
		if ev.State.Identity != nil {
			n.Text = "Welcome, " + identity.DisplayName(ev.State.Identity) + "!"
		} else {
			n.Text = "Your account was created. You can sign in now."
		}
	case authstate.EventSignupFailed:
		n.Level, n.Title = LevelError, "Registration failed"
		n.Text = failureText(ev.State.LastError, "Unable to register. Please try again.")
	case authstate.EventCheckFailed:
		if ev.State.LastError == nil || ev.State.LastError.Kind == "" {
			return Notice{}, false
		}
		n.Level, n.Title = LevelError, "Session check failed"
		n.Text = kindText(ev.State.LastError)
	default:
		return Notice{}, false
	}
	return n, true
}

func failureText(f *authstate.Failure, fallback string) string {
	if f == nil || f.Message == "" {
		return fallback
	}
	return f.Message
}

func kindText(f *authstate.Failure) string {
	if f == nil {
		return request.Kind("").Message()
	}
	return f.Kind.Message()
}

// Sink receives notices.
type Sink interface {
	Notify(Notice)
}

// FuncSink adapts a function to Sink.
type FuncSink func(Notice)

// Notify calls f.
func (f FuncSink) Notify(n Notice) { f(n) }

// WriterSink writes one line per notice.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink on w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Notify writes n. Write errors are ignored.
func (s *WriterSink) Notify(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "[%s] %s: %s\n", n.Level, n.Title, n.Text)
}

// LogSink logs notices.
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (s LogSink) Notify(n Notice) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, n.Text, "title", n.Title, "event", n.Event)
}

// Surface fans notices out to sinks.
type Surface struct {
	sinks []Sink
}

// NewSurface creates a Surface delivering to sinks.
func NewSurface(sinks ...Sink) *Surface {
	return &Surface{sinks: sinks}
}

// Handle maps ev and delivers the notice, if any.
func (s *Surface) Handle(ev authstate.Event) {
	n, ok := Map(ev)
	if !ok {
		return
	}
	RecordNotice(n.Level)
	for _, sink := range s.sinks {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Run handles events until the channel closes or ctx ends.
func (s *Surface) Run(ctx context.Context, events <-chan authstate.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ev)
		}
	}
}
