// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

// Package identity defines the authenticated principal of the portal.
//
// # Variants
//
// An Identity is exactly one of:
//   - *Student - carries roll id, class and subject set
//   - *Faculty - carries department and taught subjects
//   - *Principal
//   - *Admin
//
// The interface is sealed; consumers switch over the concrete types and
// must handle every variant. Role-specific fields only exist on their
// variant, so there is no optional-field probing.
//
// # Wire format
//
// The remote service exchanges identities as the flat JSON object described
// by Wire. Decode validates that object against a JSON Schema reflected from
// Wire before building a variant.
package identity
