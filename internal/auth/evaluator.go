// Package auth - evaluator.go is the access decision function shared by the route
// guard, the PIC guard, the access check endpoint and the menu filter.
package auth

// Reason explains an access decision. It is used as a metric label and in audit records.
type Reason string

const (
	ReasonNoSession    Reason = "no_session"
	ReasonAdmin        Reason = "admin"
	ReasonNoRule       Reason = "no_rule"
	ReasonRoleMismatch Reason = "role_mismatch"
	ReasonRole         Reason = "role"
	ReasonPIC          Reason = "pic"
	ReasonPICRequired  Reason = "pic_required"
	ReasonExempt       Reason = "exempt"
)

// Decision is the outcome of an access check.
type Decision struct {
	Granted bool
	Reason  Reason
}

func grant(r Reason) Decision { return Decision{Granted: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Granted: false, Reason: r} }

// Permission is an access requirement: a role set (possibly the wildcard) and whether
// the matching assignment must also carry PIC authority.
type Permission struct {
	AllowedRoles RoleSet
	RequiresPIC  bool
}

// NewPermission builds a Permission from raw role names.
func NewPermission(requiresPIC bool, roles ...string) Permission {
	return Permission{AllowedRoles: NewRoleSet(roles...), RequiresPIC: requiresPIC}
}

// Evaluator decides route access against a Registry. It holds no mutable state and
// is safe for concurrent use.
type Evaluator struct {
	registry  *Registry
	adminRole string
}

// NewEvaluator creates an evaluator. An empty adminRole falls back to AdminRole.
func NewEvaluator(registry *Registry, adminRole string) *Evaluator {
	role := NormalizeRole(adminRole)
	if role == "" {
		role = AdminRole
	}
	return &Evaluator{registry: registry, adminRole: role}
}

// AdminRole returns the normalized administrator role.
func (e *Evaluator) AdminRole() string {
	return e.adminRole
}

// Registry returns the rule table the evaluator resolves against.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// CanAccess reports whether the subject may open path.
func (e *Evaluator) CanAccess(path string, s Subject) bool {
	return e.Decide(path, s).Granted
}

// Decide evaluates path for the subject. The administrator check happens before rule
// resolution so a missing or broken rule can never lock an administrator out.
func (e *Evaluator) Decide(path string, s Subject) Decision {
	assignments := assignmentsOf(s)
	if len(assignments) == 0 {
		return deny(ReasonNoSession)
	}
	if e.isAdmin(assignments) {
		return grant(ReasonAdmin)
	}

	rule, ok := e.registry.Resolve(path)
	if !ok {
		return deny(ReasonNoRule)
	}
	return evaluate(rule.Permission(), assignments)
}

// Check evaluates a standalone permission (for example a menu entry) with the same
// session, administrator and PIC semantics as Decide.
func (e *Evaluator) Check(p Permission, s Subject) Decision {
	assignments := assignmentsOf(s)
	if len(assignments) == 0 {
		return deny(ReasonNoSession)
	}
	if e.isAdmin(assignments) {
		return grant(ReasonAdmin)
	}
	return evaluate(p, assignments)
}

// IsAdmin reports whether the subject holds the administrator role.
func (e *Evaluator) IsAdmin(s Subject) bool {
	return e.isAdmin(assignmentsOf(s))
}

// HasRelevantPIC reports whether some assignment of the subject is PIC for one of the
// relevant roles. An empty relevant set accepts a PIC assignment of any role.
func (e *Evaluator) HasRelevantPIC(s Subject, relevant RoleSet) bool {
	for _, a := range assignmentsOf(s) {
		if !a.IsPIC || a.Role() == "" {
			continue
		}
		if len(relevant) == 0 || relevant.IsWildcard() || relevant.Has(a.RoleName) {
			return true
		}
	}
	return false
}

func (e *Evaluator) isAdmin(assignments []Assignment) bool {
	for _, a := range assignments {
		if a.Role() == e.adminRole {
			return true
		}
	}
	return false
}

// evaluate applies the role and PIC checks. PIC only narrows access: it is looked at
// after role membership succeeded, and the role match and the PIC flag must come from
// the same assignment. A wildcard skips role names entirely, so an assignment with a
// blank role still satisfies it.
func evaluate(p Permission, assignments []Assignment) Decision {
	wildcard := p.AllowedRoles.IsWildcard()
	if !wildcard && !p.AllowedRoles.Intersects(EffectiveRoles(assignments)) {
		return deny(ReasonRoleMismatch)
	}
	if !p.RequiresPIC {
		return grant(ReasonRole)
	}
	for _, a := range assignments {
		if a.IsPIC && (wildcard || p.AllowedRoles.Has(a.RoleName)) {
			return grant(ReasonPIC)
		}
	}
	return deny(ReasonPICRequired)
}

func assignmentsOf(s Subject) []Assignment {
	if s == nil {
		return nil
	}
	return s.RoleAssignments()
}
