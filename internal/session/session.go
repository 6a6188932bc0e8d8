// Package session persists the authenticated dashboard session in an encrypted cookie.
//
// The Store is the only component that touches the cookie. Guards and handlers
// receive it explicitly; the authorization evaluator only ever sees the decoded
// *Session through the auth.Subject interface.
package session

import (
	"github.com/church-dashboard/church-dashboard/internal/auth"
)

// Identity is the display identity of the signed-in user.
type Identity struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified"`
}

// Session is the decoded cookie payload.
//
// A session with zero assignments may exist (first-time password setup) but is
// unauthenticated for authorization purposes. Assignments are kept in backend
// order and never merged by role name: the same role appears once per scope.
type Session struct {
	Identity    Identity          `json:"identity"`
	Token       string            `json:"token"`
	Assignments []auth.Assignment `json:"assignments"`
}

// RoleAssignments implements auth.Subject. It is safe on a nil session.
func (s *Session) RoleAssignments() []auth.Assignment {
	if s == nil {
		return nil
	}
	return s.Assignments
}

// Authenticated reports whether the session carries at least one role assignment.
func (s *Session) Authenticated() bool {
	return len(s.RoleAssignments()) > 0
}

// Roles returns the effective, lower-cased role names of the session.
func (s *Session) Roles() []string {
	return auth.EffectiveRoles(s.RoleAssignments()).Sorted()
}
