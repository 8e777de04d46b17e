package rbac

import (
	"github.com/shopcore/shopcore/internal/shared"
)

// DenyKind distinguishes why a request was refused.
type DenyKind int

const (
	DenyNone DenyKind = iota
	DenyUnauthenticated
	DenyForbidden
)

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Allowed bool
	Kind    DenyKind
}

// Err maps a deny decision onto the shared error taxonomy. Allowed decisions
// return nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Kind == DenyUnauthenticated:
		return shared.ErrUnauthenticated
	default:
		return shared.ErrForbidden
	}
}

// Owned is implemented by resources that record an owning actor.
type Owned interface {
	ResourceOwnerID() int64
}

// Guard gates mutating operations with the role policy. Each evaluation is
// independent and side-effect free.
type Guard struct {
	policy *Policy
}

// NewGuard constructs a Guard over the given policy.
func NewGuard(policy *Policy) *Guard {
	return &Guard{policy: policy}
}

// Policy exposes the underlying role table for rank queries.
func (g *Guard) Policy() *Policy {
	return g.policy
}

var allow = Decision{Allowed: true}

func deny(kind DenyKind) Decision {
	return Decision{Kind: kind}
}

// Evaluate decides whether the actor may perform an action requiring any of
// the given permissions. When a resource is supplied, holding the own-variant
// of a required permission while owning the resource also allows the action.
func (g *Guard) Evaluate(actor shared.Actor, required []string, resource Owned) Decision {
	if actor.IsZero() {
		return deny(DenyUnauthenticated)
	}
	if g.policy.HasWildcard(actor.Role) {
		return allow
	}
	if g.policy.HasAnyPermission(actor.Role, required...) {
		return allow
	}
	if resource != nil && actor.ID == resource.ResourceOwnerID() {
		for _, perm := range required {
			if g.policy.HasPermission(actor.Role, OwnVariant(perm)) {
				return allow
			}
		}
	}
	return deny(DenyForbidden)
}

// Require is Evaluate without a resource, returned as an error.
func (g *Guard) Require(actor shared.Actor, required ...string) error {
	return g.Evaluate(actor, required, nil).Err()
}
