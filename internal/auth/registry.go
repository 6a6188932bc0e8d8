// Package auth - registry.go holds the declarative route permission table.
//
// Rules are looked up by exact route first. Only when no exact rule exists is the
// table scanned, in registration order, for the first pattern that is a strict prefix
// of the requested path. Because the scan stops at the first hit, more specific
// prefixes must be registered before broader ones (DefaultRules keeps "/dashboard"
// last for that reason). A path that matches nothing is denied.
package auth

import "strings"

// Rule maps a route pattern to the roles allowed on it.
type Rule struct {
	RoutePattern string   `mapstructure:"route_pattern" json:"route_pattern"`
	AllowedRoles []string `mapstructure:"allowed_roles" json:"allowed_roles"`
	RequiresPIC  bool     `mapstructure:"requires_pic" json:"requires_pic"`

	allowed RoleSet
}

// Allowed returns the normalized allowed-role set of the rule.
func (r Rule) Allowed() RoleSet {
	if r.allowed == nil {
		return NewRoleSet(r.AllowedRoles...)
	}
	return r.allowed
}

// Permission returns the access requirement expressed by the rule.
func (r Rule) Permission() Permission {
	return Permission{AllowedRoles: r.Allowed(), RequiresPIC: r.RequiresPIC}
}

// Registry is an immutable, ordered route permission table. It is safe for
// concurrent use once built.
type Registry struct {
	rules []Rule
	index map[string]int
}

// NewRegistry builds a registry from rules, preserving their order. A pattern that is
// registered twice keeps the position of its first occurrence and the content of the
// last one. Rules with an empty pattern are ignored.
func NewRegistry(rules ...Rule) *Registry {
	reg := &Registry{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for _, rule := range rules {
		if rule.RoutePattern == "" {
			continue
		}
		rule.allowed = NewRoleSet(rule.AllowedRoles...)
		if i, exists := reg.index[rule.RoutePattern]; exists {
			reg.rules[i] = rule
			continue
		}
		reg.index[rule.RoutePattern] = len(reg.rules)
		reg.rules = append(reg.rules, rule)
	}
	return reg
}

// Resolve returns the rule governing path. The boolean is false when no rule
// matches, which callers must treat as a denial.
func (r *Registry) Resolve(path string) (Rule, bool) {
	if r == nil {
		return Rule{}, false
	}
	if i, ok := r.index[path]; ok {
		return r.rules[i], true
	}
	for _, rule := range r.rules {
		if path != rule.RoutePattern && strings.HasPrefix(path, rule.RoutePattern) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the registered rules in order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// DefaultRules is the built-in dashboard permission table. A pattern also governs every
// path it prefixes, so "/dashboard/jemaat" covers "/dashboard/jemaat/42". A more specific
// pattern must come before the pattern it extends.
func DefaultRules() []Rule {
	everyone := []string{Wildcard}
	members := []string{"sekretariat", "gembala"}
	ministry := []string{"musik", "multimedia", "usher"}

	return []Rule{
		{RoutePattern: "/dashboard/role", AllowedRoles: []string{AdminRole}},
		{RoutePattern: "/dashboard/jemaat", AllowedRoles: members},
		{RoutePattern: "/dashboard/kehadiran", AllowedRoles: []string{"sekretariat", "usher"}, RequiresPIC: true},
		{RoutePattern: "/dashboard/komsel", AllowedRoles: []string{"komsel", "gembala"}},
		{RoutePattern: "/dashboard/lagu", AllowedRoles: []string{"musik"}},
		{RoutePattern: "/dashboard/insight", AllowedRoles: []string{"gembala"}},

		{RoutePattern: "/dashboard/pelayanan/jadwal", AllowedRoles: everyone},
		{RoutePattern: "/dashboard/pelayanan", AllowedRoles: ministry, RequiresPIC: true},

		{RoutePattern: "/dashboard/acara", AllowedRoles: everyone},
		{RoutePattern: "/dashboard/profil", AllowedRoles: everyone},
		{RoutePattern: "/dashboard", AllowedRoles: everyone},
	}
}
