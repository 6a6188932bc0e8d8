// Package menu builds the navigation menu shown to a dashboard session.
//
// Every entry carries its own access requirement. Visibility is decided by the same
// auth.Evaluator used by the route guards, so an entry is shown exactly when the
// session would pass the equivalent permission check.
package menu

import (
	"strings"

	"github.com/church-dashboard/church-dashboard/internal/auth"
)

// Item is one navigation entry.
type Item struct {
	Title        string   `mapstructure:"title" json:"title"`
	Description  string   `mapstructure:"description" json:"description,omitempty"`
	Route        string   `mapstructure:"route" json:"route"`
	Icon         string   `mapstructure:"icon" json:"icon,omitempty"`
	AllowedRoles []string `mapstructure:"allowed_roles" json:"-"`
	RequiresPIC  bool     `mapstructure:"requires_pic" json:"-"`
	Children     []Item   `mapstructure:"children" json:"children,omitempty"`
}

// Permission returns the access requirement of the entry.
func (it Item) Permission() auth.Permission {
	return auth.NewPermission(it.RequiresPIC, it.AllowedRoles...)
}

// Category groups entries whose route contains one of Match. A category with no
// Match entries accepts anything not claimed by an earlier category.
type Category struct {
	Name  string   `mapstructure:"name" json:"name"`
	Match []string `mapstructure:"match" json:"-"`
}

func (c Category) matches(route string) bool {
	if len(c.Match) == 0 {
		return true
	}
	for _, m := range c.Match {
		if m != "" && strings.Contains(route, m) {
			return true
		}
	}
	return false
}

// Section is a non-empty category with its visible entries.
type Section struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// Filter returns the entries the subject may see, children filtered recursively. An
// administrator gets the full tree. The input is never modified.
func Filter(ev *auth.Evaluator, items []Item, s auth.Subject) []Item {
	if ev.IsAdmin(s) {
		return clone(items)
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !ev.Check(it.Permission(), s).Granted {
			continue
		}
		it.Children = Filter(ev, it.Children, s)
		out = append(out, it)
	}
	return out
}

// Search keeps entries whose title or description contains q, case-insensitively.
// A parent that does not match itself is kept when one of its children matches, with
// only the matching children. An empty query returns items unchanged.
func Search(items []Item, q string) []Item {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.matches(q) {
			out = append(out, it)
			continue
		}
		if kids := Search(it.Children, q); len(kids) > 0 {
			it.Children = kids
			out = append(out, it)
		}
	}
	return out
}

func (it Item) matches(q string) bool {
	return strings.Contains(strings.ToLower(it.Title), q) ||
		strings.Contains(strings.ToLower(it.Description), q)
}

// Group assigns each entry to the first category whose route pattern matches it.
// Category order and entry order are preserved. Empty categories are omitted, and
// entries matching no category are dropped.
func Group(items []Item, categories []Category) []Section {
	buckets := make([][]Item, len(categories))
	for _, it := range items {
		for i, c := range categories {
			if c.matches(it.Route) {
				buckets[i] = append(buckets[i], it)
				break
			}
		}
	}
	sections := make([]Section, 0, len(categories))
	for i, c := range categories {
		if len(buckets[i]) == 0 {
			continue
		}
		sections = append(sections, Section{Category: c.Name, Items: buckets[i]})
	}
	return sections
}

// Builder holds a static menu and the evaluator used to filter it.
type Builder struct {
	evaluator  *auth.Evaluator
	items      []Item
	categories []Category
}

// NewBuilder creates a builder. Empty items or categories fall back to the defaults.
func NewBuilder(ev *auth.Evaluator, items []Item, categories []Category) *Builder {
	if len(items) == 0 {
		items = DefaultMenu()
	}
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return &Builder{evaluator: ev, items: items, categories: categories}
}

// Build filters, searches and groups the menu for the subject.
func (b *Builder) Build(s auth.Subject, q string) []Section {
	return Group(Search(Filter(b.evaluator, b.items, s), q), b.categories)
}

// Visible returns the filtered, ungrouped tree.
func (b *Builder) Visible(s auth.Subject) []Item {
	return Filter(b.evaluator, b.items, s)
}

func clone(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		it.Children = clone(it.Children)
		out[i] = it
	}
	return out
}
