// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package request executes HTTP calls against the portal identity service.
//
// Every call runs under a per-attempt timeout and either returns the
// response or an *Error classified by Kind. Transient kinds (network,
// timeout, service unavailable) are retried with exponential backoff for
// idempotent requests; validation and authentication failures are never
// retried and always reach the caller.
package request
