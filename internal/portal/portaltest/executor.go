// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package portaltest

import (
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/edusphere/portal/internal/request"
)

// FastBackoff keeps the default retry count but waits only a millisecond
// between attempts.
func FastBackoff() request.BackoffFactory {
	return func() retry.Backoff {
		return retry.WithMaxRetries(request.DefaultRetryAttempts, retry.NewConstant(time.Millisecond))
	}
}

// Executor returns a request executor pointed at s with a fast retry
// schedule and a short per-attempt timeout.
func (s *Service) Executor(t TB, opts ...request.Option) *request.Executor {
	t.Helper()
	opts = append([]request.Option{request.WithBackoff(FastBackoff())}, opts...)
	exec, err := request.NewExecutor(request.Config{
		BaseURL: s.URL,
		Timeout: 2 * time.Second,
	}, opts...)
	if err != nil {
		t.Fatalf("create executor: %v", err)
	}
	return exec
}
