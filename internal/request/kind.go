// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package request

// Kind classifies a failed request.
type Kind string

// Failure kinds.
const (
	// KindNetwork means no response reached the client (DNS, refused, reset).
	KindNetwork Kind = "NETWORK_ERROR"
	// KindTimeout means the per-attempt deadline expired.
	KindTimeout Kind = "TIMEOUT"
	// KindServiceUnavailable covers 5xx responses and malformed bodies.
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	// KindValidation covers 4xx responses other than 401.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindAuthRequired is a 401: the session is missing or expired.
	KindAuthRequired Kind = "AUTH_REQUIRED"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindServiceUnavailable:
		return true
	default:
		return false
	}
}

// Message returns the human message shown for this kind.
func (k Kind) Message() string {
	switch k {
	case KindNetwork:
		return "Unable to reach the school portal. Check your connection and try again."
	case KindTimeout:
		return "The school portal took too long to respond. Please try again."
	case KindServiceUnavailable:
		return "The school portal is temporarily unavailable. Please try again later."
	case KindValidation:
		return "Some of the submitted information is invalid."
	case KindAuthRequired:
		return "Your session has expired. Please sign in again."
	default:
		return "Something went wrong. Please try again."
	}
}

func (k Kind) String() string {
	return string(k)
}
