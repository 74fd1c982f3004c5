// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package guard

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/edusphere/portal/internal/identity"
)

// Rule protects the paths matching any of Patterns. Empty Roles admits any
// signed-in identity.
type Rule struct {
	Patterns []string
	Roles    []identity.Role
}

type compiledRule struct {
	globs []glob.Glob
	roles []identity.Role
}

// Table maps paths to required roles. The first matching rule wins.
type Table struct {
	rules []compiledRule
}

// NewTable compiles rules. Patterns use '/' as the separator, so "*"
// matches one segment and "**" any number.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if len(r.Patterns) == 0 {
			return nil, oops.Code("GUARD_RULE_INVALID").With("rule", i).Errorf("rule has no patterns")
		}
		for _, role := range r.Roles {
			if !role.IsValid() {
				return nil, oops.Code("GUARD_RULE_INVALID").
					With("rule", i).
					With("role", role).
					Errorf("unknown role")
			}
		}
		cr := compiledRule{roles: r.Roles}
		for _, p := range r.Patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return nil, oops.Code("GUARD_RULE_INVALID").
					With("rule", i).
					With("pattern", p).
					Wrap(err)
			}
			cr.globs = append(cr.globs, g)
		}
		t.rules = append(t.rules, cr)
	}
	return t, nil
}

// DefaultRules protect each role's dashboard for that role and the rest of
// the dashboard and profile pages for any signed-in identity.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(identity.AllRoles())+1)
	for _, role := range identity.AllRoles() {
		base := LandingPath(role)
		rules = append(rules, Rule{
			Patterns: []string{base, base + "/**"},
			Roles:    []identity.Role{role},
		})
	}
	return append(rules, Rule{
		Patterns: []string{"/dashboard", "/dashboard/**", "/profile", "/profile/**"},
	})
}

// DefaultTable compiles DefaultRules.
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the roles required for path and whether it is protected.
func (t *Table) Match(path string) ([]identity.Role, bool) {
	for _, r := range t.rules {
		for _, g := range r.globs {
			if g.Match(path) {
				return r.roles, true
			}
		}
	}
	return nil, false
}
