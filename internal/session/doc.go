// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package session persists the cached identity and credential token for one
// service origin.
//
// The cached identity is a hint for fast first paint only. Authority always
// comes from a live check against the identity service.
package session
