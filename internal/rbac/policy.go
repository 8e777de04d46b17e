package rbac

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopcore/shopcore/internal/shared"
)

// Policy is the role table: role name to rank and permission set. It is
// constructed once at startup and never mutated afterwards, so concurrent
// readers need no synchronisation.
type Policy struct {
	roles map[string]compiledRole
}

type compiledRole struct {
	rank     int
	perms    map[string]struct{}
	wildcard bool
}

// NewPolicy compiles a role table. Role names and permission tokens are
// trimmed and lower-cased; the input map is not retained.
func NewPolicy(roles map[string]Role) *Policy {
	compiled := make(map[string]compiledRole, len(roles))
	for name, role := range roles {
		name = normalize(name)
		if name == "" {
			continue
		}
		cr := compiledRole{rank: role.Rank, perms: make(map[string]struct{}, len(role.Permissions))}
		for _, perm := range role.Permissions {
			perm = normalize(perm)
			if perm == "" {
				continue
			}
			if perm == PermAll {
				cr.wildcard = true
			}
			cr.perms[perm] = struct{}{}
		}
		compiled[name] = cr
	}
	return &Policy{roles: compiled}
}

// LoadPolicy reads a role table from a JSON file shaped as
// {"role": {"rank": 3, "permissions": ["..."]}}.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read policy: %w", err)
	}
	var roles map[string]Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("rbac: parse policy: %w", err)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("rbac: policy file %s declares no roles", path)
	}
	return NewPolicy(roles), nil
}

// DefaultPolicy returns the built-in role table used when no policy file is
// configured.
func DefaultPolicy() *Policy {
	return NewPolicy(map[string]Role{
		"admin": {Rank: 100, Permissions: []string{PermAll}},
		"manager": {Rank: 3, Permissions: []string{
			shared.PermProductView,
			shared.PermProductCreate,
			shared.PermProductEdit,
			shared.PermProductDelete,
			shared.PermOrderView,
			shared.PermOrderPlace,
			shared.PermOrderManage,
			shared.PermUsersView,
			shared.PermUsersEdit,
			shared.PermUsersDelete,
			shared.PermAssignRoles,
		}},
		"seller": {Rank: 2, Permissions: []string{
			shared.PermProductView,
			shared.PermProductCreate,
			OwnVariant(shared.PermProductEdit),
			OwnVariant(shared.PermProductDelete),
			shared.PermOrderView,
		}},
		"delivery": {Rank: 1, Permissions: []string{
			shared.PermOrderView,
			shared.PermOrderDeliver,
		}},
		"customer": {Rank: 1, Permissions: []string{
			shared.PermProductView,
			shared.PermOrderPlace,
			OwnVariant(shared.PermOrderView),
			OwnVariant(shared.PermUsersEdit),
		}},
	})
}

// HasPermission reports whether the role holds the permission. Unknown roles
// hold nothing; the wildcard satisfies every token.
func (p *Policy) HasPermission(role, perm string) bool {
	cr, ok := p.roles[normalize(role)]
	if !ok {
		return false
	}
	if cr.wildcard {
		return true
	}
	_, ok = cr.perms[normalize(perm)]
	return ok
}

// HasAnyPermission reports whether the role holds at least one of the
// permissions.
func (p *Policy) HasAnyPermission(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.HasPermission(role, perm) {
			return true
		}
	}
	return false
}

// HasWildcard reports whether the role holds the "all" token.
func (p *Policy) HasWildcard(role string) bool {
	cr, ok := p.roles[normalize(role)]
	return ok && cr.wildcard
}

// RankOf returns the role's rank, or 0 for unknown roles.
func (p *Policy) RankOf(role string) int {
	cr, ok := p.roles[normalize(role)]
	if !ok {
		return 0
	}
	return cr.rank
}

// Describe returns the role table in declaration form, for introspection
// endpoints. The returned map is a copy.
func (p *Policy) Describe() map[string]Role {
	out := make(map[string]Role, len(p.roles))
	for name, cr := range p.roles {
		perms := make([]string, 0, len(cr.perms))
		for perm := range cr.perms {
			perms = append(perms, perm)
		}
		sort.Strings(perms)
		out[name] = Role{Rank: cr.rank, Permissions: perms}
	}
	return out
}

// KnownRole reports whether the role exists in the table.
func (p *Policy) KnownRole(role string) bool {
	_, ok := p.roles[normalize(role)]
	return ok
}

// AllowsAction answers the resource/action form of a permission query by
// translating it into the dotted token the table stores.
func (p *Policy) AllowsAction(role, resource, action string) bool {
	return p.HasPermission(role, resource+"."+action)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
