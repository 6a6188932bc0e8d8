// Package auth - roles.go defines role assignments and the normalized role set used by
// the evaluator, the guards and the menu filter for every role comparison.
package auth

import (
	"sort"
	"strings"
)

const (
	// AdminRole is the designated administrator role. A session holding it bypasses
	// every rule, including PIC scoping.
	AdminRole = "admin"

	// Wildcard in a rule's allowed roles matches any authenticated role.
	Wildcard = "*"
)

// Assignment is one role grant tied to an organizational scope (a congregation).
// The same role name may appear in several assignments, one per scope, each with its
// own PIC flag.
type Assignment struct {
	RoleName  string `json:"role_name"`
	ScopeID   string `json:"scope_id"`
	ScopeName string `json:"scope_name"`
	IsPIC     bool   `json:"is_pic"`
}

// Role returns the normalized role name of the assignment.
func (a Assignment) Role() string {
	return NormalizeRole(a.RoleName)
}

// Subject is anything that carries role assignments, typically a *session.Session.
// Implementations must tolerate being called on a nil receiver.
type Subject interface {
	RoleAssignments() []Assignment
}

// NormalizeRole lower-cases a role name. Roles are free text and compared
// case-insensitively everywhere.
func NormalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RoleSet is a set of normalized role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from raw role names. Empty names are dropped so a malformed
// entry never matches anything.
func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, name := range names {
		if n := NormalizeRole(name); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// EffectiveRoles returns the distinct normalized role names across assignments.
func EffectiveRoles(assignments []Assignment) RoleSet {
	set := make(RoleSet, len(assignments))
	for _, a := range assignments {
		if r := a.Role(); r != "" {
			set[r] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the role (compared case-insensitively).
func (s RoleSet) Has(role string) bool {
	n := NormalizeRole(role)
	if n == "" {
		return false
	}
	_, ok := s[n]
	return ok
}

// IsWildcard reports whether the set contains the wildcard entry.
func (s RoleSet) IsWildcard() bool {
	_, ok := s[Wildcard]
	return ok
}

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for r := range small {
		if _, ok := large[r]; ok {
			return true
		}
	}
	return false
}

// Sorted returns the roles in lexical order, mostly for logs and audit records.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
