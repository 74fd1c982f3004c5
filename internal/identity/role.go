// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package identity

import (
	"strings"

	"github.com/samber/oops"
)

// Role is the discriminant of an Identity.
type Role string

// Portal roles.
const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RolePrincipal Role = "principal"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether r is one of the portal roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RolePrincipal, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// AllRoles returns every role in display order.
func AllRoles() []Role {
	return []Role{RoleStudent, RoleFaculty, RolePrincipal, RoleAdmin}
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", oops.Code("IDENTITY_INVALID_ROLE").
			With("role", s).
			Errorf("unknown role %q", s)
	}
	return role, nil
}

// ContainsRole reports whether role is in roles.
func ContainsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
