// Package rbac holds the static role-to-department mapping and derives
// per-request access policies from it.
package rbac

import (
	"sort"
	"strings"
)

// Store maps roles to the departments they may access. Built once at process
// start and shared read-only across requests.
type Store struct {
	roleToDepartments map[string][]string
}

// NewStore builds a Store from a role -> departments mapping. Role and
// department names are normalized to lower case.
func NewStore(mapping map[string][]string) *Store {
	s := &Store{roleToDepartments: make(map[string][]string, len(mapping))}
	for role, departments := range mapping {
		normalized := make([]string, 0, len(departments))
		seen := make(map[string]struct{}, len(departments))
		for _, dept := range departments {
			d := NormalizeRole(dept)
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			normalized = append(normalized, d)
		}
		s.roleToDepartments[NormalizeRole(role)] = normalized
	}
	return s
}

// NormalizeRole normalizes incoming role names for consistent lookups.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// DepartmentsFor returns a copy of the departments the role may access.
// Unknown roles get an empty slice.
func (s *Store) DepartmentsFor(role string) []string {
	departments, ok := s.roleToDepartments[NormalizeRole(role)]
	if !ok {
		return nil
	}
	out := make([]string, len(departments))
	copy(out, departments)
	return out
}

// Known reports whether the role exists in the mapping.
func (s *Store) Known(role string) bool {
	_, ok := s.roleToDepartments[NormalizeRole(role)]
	return ok
}

// Roles lists all configured roles in sorted order.
func (s *Store) Roles() []string {
	roles := make([]string, 0, len(s.roleToDepartments))
	for role := range s.roleToDepartments {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// AccessPolicy is the per-request view of what the caller may touch.
// It is recomputed from the Store on every request and never persisted.
type AccessPolicy struct {
	Role        string
	Departments []string
	// Tables maps each accessible structured table to its department.
	Tables map[string]string
}

// Policy derives an AccessPolicy for a role. The tables argument maps every
// known structured table name to its department; only tables inside the
// role's department scope are carried over.
func (s *Store) Policy(role string, tables map[string]string) AccessPolicy {
	departments := s.DepartmentsFor(role)
	allowed := make(map[string]string)
	inScope := make(map[string]struct{}, len(departments))
	for _, d := range departments {
		inScope[d] = struct{}{}
	}
	for table, dept := range tables {
		if _, ok := inScope[dept]; ok {
			allowed[table] = dept
		}
	}
	return AccessPolicy{
		Role:        NormalizeRole(role),
		Departments: departments,
		Tables:      allowed,
	}
}

// AllowsTable reports whether the policy grants access to the table.
func (p AccessPolicy) AllowsTable(table string) bool {
	_, ok := p.Tables[strings.ToLower(strings.TrimSpace(table))]
	return ok
}

// TableNames lists the accessible tables in sorted order.
func (p AccessPolicy) TableNames() []string {
	names := make([]string, 0, len(p.Tables))
	for name := range p.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
