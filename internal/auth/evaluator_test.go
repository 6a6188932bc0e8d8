package auth

import "testing"

type subject []Assignment

func (s subject) RoleAssignments() []Assignment { return s }

func as(role string, pic bool) Assignment {
	return Assignment{RoleName: role, ScopeID: "gms-1", ScopeName: "GMS Pusat", IsPIC: pic}
}

func TestEvaluator_Decide(t *testing.T) {
	ev := NewEvaluator(NewRegistry(DefaultRules()...), "")

	tests := []struct {
		name    string
		path    string
		subject Subject
		want    Decision
	}{
		{"nil subject", "/dashboard", nil, Decision{false, ReasonNoSession}},
		{"no assignments", "/dashboard", subject{}, Decision{false, ReasonNoSession}},
		{"admin on restricted route", "/dashboard/role", subject{as("admin", false)}, Decision{true, ReasonAdmin}},
		{"admin case-insensitive", "/dashboard/role", subject{as("ADMIN", false)}, Decision{true, ReasonAdmin}},
		{"admin on unregistered route", "/settings", subject{as("admin", false)}, Decision{true, ReasonAdmin}},
		{"admin on PIC route without PIC", "/dashboard/kehadiran", subject{as("admin", false)}, Decision{true, ReasonAdmin}},
		{"unregistered route", "/settings", subject{as("gembala", false)}, Decision{false, ReasonNoRule}},
		{"wildcard route", "/dashboard", subject{as("musik", false)}, Decision{true, ReasonRole}},
		{"role match", "/dashboard/jemaat/12", subject{as("Gembala", false)}, Decision{true, ReasonRole}},
		{"role mismatch", "/dashboard/role", subject{as("gembala", false)}, Decision{false, ReasonRoleMismatch}},
		{"PIC route with PIC", "/dashboard/kehadiran", subject{as("usher", true)}, Decision{true, ReasonPIC}},
		{"PIC route without PIC", "/dashboard/kehadiran", subject{as("usher", false)}, Decision{false, ReasonPICRequired}},
		{"PIC route wrong role with PIC", "/dashboard/kehadiran", subject{as("musik", true)}, Decision{false, ReasonRoleMismatch}},
		{
			"PIC on unrelated assignment does not count",
			"/dashboard/kehadiran",
			subject{as("usher", false), as("musik", true)},
			Decision{false, ReasonPICRequired},
		},
		{
			"PIC on one scope of a repeated role",
			"/dashboard/pelayanan/tim",
			subject{
				{RoleName: "musik", ScopeID: "a", IsPIC: false},
				{RoleName: "musik", ScopeID: "b", IsPIC: true},
			},
			Decision{true, ReasonPIC},
		},
		{"specific wildcard beats PIC prefix", "/dashboard/pelayanan/jadwal", subject{as("musik", false)}, Decision{true, ReasonRole}},
		{"PIC prefix below pelayanan", "/dashboard/pelayanan/tim", subject{as("musik", false)}, Decision{false, ReasonPICRequired}},
		{"blank role on wildcard route", "/dashboard", subject{{RoleName: "", IsPIC: true}}, Decision{true, ReasonRole}},
		{"blank role on named route", "/dashboard/jemaat", subject{{RoleName: " "}}, Decision{false, ReasonRoleMismatch}},
		{"blank role with PIC on named PIC route", "/dashboard/kehadiran", subject{{RoleName: "", IsPIC: true}}, Decision{false, ReasonRoleMismatch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.Decide(tt.path, tt.subject); got != tt.want {
				t.Errorf("Decide(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEvaluator_JadwalExactIsOpen(t *testing.T) {
	ev := NewEvaluator(NewRegistry(DefaultRules()...), AdminRole)
	if !ev.CanAccess("/dashboard/pelayanan/jadwal", subject{as("komsel", false)}) {
		t.Error("exact /dashboard/pelayanan/jadwal should be open to any role")
	}
}

func TestEvaluator_WildcardPICAcceptsAnyPIC(t *testing.T) {
	ev := NewEvaluator(NewRegistry(Rule{RoutePattern: "/lead", AllowedRoles: []string{Wildcard}, RequiresPIC: true}), "")
	if !ev.CanAccess("/lead", subject{as("komsel", true)}) {
		t.Error("wildcard PIC rule should accept any PIC assignment")
	}
	if ev.CanAccess("/lead", subject{as("komsel", false)}) {
		t.Error("wildcard PIC rule should reject a non-PIC session")
	}
}

func TestEvaluator_WildcardIgnoresRoleNames(t *testing.T) {
	ev := NewEvaluator(NewRegistry(
		Rule{RoutePattern: "/x", AllowedRoles: []string{Wildcard}},
		Rule{RoutePattern: "/lead", AllowedRoles: []string{Wildcard}, RequiresPIC: true},
	), "")

	tests := []struct {
		name    string
		path    string
		subject Subject
		want    Decision
	}{
		{"blank role", "/x", subject{{RoleName: ""}}, Decision{true, ReasonRole}},
		{"blank role with PIC", "/lead", subject{{RoleName: "", IsPIC: true}}, Decision{true, ReasonPIC}},
		{"blank role without PIC", "/lead", subject{{RoleName: ""}}, Decision{false, ReasonPICRequired}},
		{"still needs an assignment", "/x", subject{}, Decision{false, ReasonNoSession}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.Decide(tt.path, tt.subject); got != tt.want {
				t.Errorf("Decide(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEvaluator_CustomAdminRole(t *testing.T) {
	ev := NewEvaluator(NewRegistry(DefaultRules()...), " Superuser ")
	if ev.AdminRole() != "superuser" {
		t.Fatalf("AdminRole() = %q", ev.AdminRole())
	}
	if !ev.IsAdmin(subject{as("superuser", false)}) {
		t.Error("custom admin role not recognised")
	}
	if ev.IsAdmin(subject{as("admin", false)}) {
		t.Error("default admin role should not apply once overridden")
	}
}

func TestEvaluator_PICNeverWidensAccess(t *testing.T) {
	ev := NewEvaluator(NewRegistry(DefaultRules()...), "")
	s := subject{as("usher", false)}
	withPIC := subject{as("usher", true)}
	for _, rule := range DefaultRules() {
		plain, lead := ev.CanAccess(rule.RoutePattern, s), ev.CanAccess(rule.RoutePattern, withPIC)
		if plain && !lead {
			t.Errorf("%s: PIC flag removed access", rule.RoutePattern)
		}
		if !rule.RequiresPIC && plain != lead {
			t.Errorf("%s: PIC flag changed access to a non-PIC route", rule.RoutePattern)
		}
	}
}

func TestEvaluator_Check(t *testing.T) {
	ev := NewEvaluator(nil, "")
	p := NewPermission(true, "musik")

	if d := ev.Check(p, subject{as("musik", true)}); !d.Granted {
		t.Errorf("Check() = %+v, want granted", d)
	}
	if d := ev.Check(p, subject{as("musik", false)}); d.Reason != ReasonPICRequired {
		t.Errorf("Check() reason = %q, want %q", d.Reason, ReasonPICRequired)
	}
	if d := ev.Check(p, subject{as("admin", false)}); d.Reason != ReasonAdmin {
		t.Errorf("Check() reason = %q, want %q", d.Reason, ReasonAdmin)
	}
	if d := ev.Check(p, nil); d.Reason != ReasonNoSession {
		t.Errorf("Check() reason = %q, want %q", d.Reason, ReasonNoSession)
	}
}

func TestEvaluator_HasRelevantPIC(t *testing.T) {
	ev := NewEvaluator(nil, "")
	s := subject{as("usher", false), as("musik", true)}

	tests := []struct {
		name     string
		relevant RoleSet
		want     bool
	}{
		{"any PIC when relevant empty", nil, true},
		{"wildcard relevant", NewRoleSet(Wildcard), true},
		{"relevant match", NewRoleSet("musik"), true},
		{"relevant without PIC", NewRoleSet("usher"), false},
		{"unrelated", NewRoleSet("komsel"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.HasRelevantPIC(s, tt.relevant); got != tt.want {
				t.Errorf("HasRelevantPIC() = %v, want %v", got, tt.want)
			}
		})
	}
}
