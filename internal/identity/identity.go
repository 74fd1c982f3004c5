// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package identity

import (
	"github.com/samber/oops"
)

// Profile holds the fields every identity carries.
type Profile struct {
	ID    int64
	Name  string
	Email string
}

// Identity is the authenticated principal. Implemented only by *Student,
// *Faculty, *Principal and *Admin.
type Identity interface {
	// Base returns the common profile fields.
	Base() Profile
	// Role returns the variant discriminant.
	Role() Role

	sealed()
}

// Student is a learner enrolled in a class.
type Student struct {
	Profile
	RollID   string
	Class    string
	Subjects []string
}

// Faculty is a teaching staff member.
type Faculty struct {
	Profile
	Department string
	Subjects   []string
}

// Principal heads the school.
type Principal struct {
	Profile
}

// Admin operates the portal.
type Admin struct {
	Profile
}

func (s *Student) Base() Profile   { return s.Profile }
func (f *Faculty) Base() Profile   { return f.Profile }
func (p *Principal) Base() Profile { return p.Profile }
func (a *Admin) Base() Profile     { return a.Profile }

func (*Student) Role() Role   { return RoleStudent }
func (*Faculty) Role() Role   { return RoleFaculty }
func (*Principal) Role() Role { return RolePrincipal }
func (*Admin) Role() Role     { return RoleAdmin }

func (*Student) sealed()   {}
func (*Faculty) sealed()   {}
func (*Principal) sealed() {}
func (*Admin) sealed()     {}

// New builds the variant for role from a profile. Role-specific fields are
// left empty.
func New(role Role, p Profile) (Identity, error) {
	if err := validateProfile(p); err != nil {
		return nil, err
	}
	switch role {
	case RoleStudent:
		return &Student{Profile: p}, nil
	case RoleFaculty:
		return &Faculty{Profile: p}, nil
	case RolePrincipal:
		return &Principal{Profile: p}, nil
	case RoleAdmin:
		return &Admin{Profile: p}, nil
	default:
		return nil, oops.Code("IDENTITY_INVALID_ROLE").
			With("role", role).
			Errorf("unknown role %q", role)
	}
}

// DisplayName returns the name to greet the identity with, falling back to
// the email address.
func DisplayName(id Identity) string {
	if id == nil {
		return ""
	}
	p := id.Base()
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Equal reports whether a and b describe the same principal and role.
func Equal(a, b Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Role() == b.Role() && a.Base().ID == b.Base().ID
}

func validateProfile(p Profile) error {
	if p.ID <= 0 {
		return oops.Code("IDENTITY_INVALID").
			With("id", p.ID).
			Errorf("identity id must be positive")
	}
	if p.Email == "" {
		return oops.Code("IDENTITY_INVALID").Errorf("identity email cannot be empty")
	}
	return nil
}
