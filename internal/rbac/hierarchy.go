package rbac

import (
	"github.com/shopcore/shopcore/internal/shared"
)

// Administrative mutations on other accounts are rank-gated: the actor must
// strictly outrank the target unless it targets itself or holds the wildcard.

// CanManageTarget decides whether the actor may update the target account.
// Self-updates are always allowed here; restrictions on individual fields
// (such as the role field) are enforced separately.
func (g *Guard) CanManageTarget(actor shared.Actor, targetID int64, targetRole string) Decision {
	if actor.IsZero() {
		return deny(DenyUnauthenticated)
	}
	if actor.ID == targetID {
		return allow
	}
	if g.policy.HasWildcard(actor.Role) {
		return allow
	}
	if g.policy.RankOf(actor.Role) > g.policy.RankOf(targetRole) {
		return allow
	}
	return deny(DenyForbidden)
}

// CanDeleteTarget decides whether the actor may delete the target account.
// Unlike updates there is no self exception: deletion always requires the
// strict rank inequality or the wildcard.
func (g *Guard) CanDeleteTarget(actor shared.Actor, targetRole string) Decision {
	if actor.IsZero() {
		return deny(DenyUnauthenticated)
	}
	if g.policy.HasWildcard(actor.Role) {
		return allow
	}
	if g.policy.RankOf(actor.Role) > g.policy.RankOf(targetRole) {
		return allow
	}
	return deny(DenyForbidden)
}

// CanAssignRole decides whether the actor may grant newRole to another
// account. It requires the assign-roles permission and that the granted role
// ranks strictly below the actor's own; the wildcard bypasses both.
func (g *Guard) CanAssignRole(actor shared.Actor, newRole string) Decision {
	if actor.IsZero() {
		return deny(DenyUnauthenticated)
	}
	if g.policy.HasWildcard(actor.Role) {
		return allow
	}
	if !g.policy.HasPermission(actor.Role, shared.PermAssignRoles) {
		return deny(DenyForbidden)
	}
	if g.policy.RankOf(newRole) >= g.policy.RankOf(actor.Role) {
		return deny(DenyForbidden)
	}
	return allow
}
