package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]User, int, error)
}

// Service handles user management under the rank hierarchy rules.
type Service struct {
	repo  RepositoryPort
	guard *rbac.Guard
	audit shared.AuditRecorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, guard: guard, audit: audit}
}

// Get returns a user. Viewing other accounts requires the view permission;
// actors always see themselves.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (User, error) {
	if actor.IsZero() {
		return User{}, shared.ErrUnauthenticated
	}
	if actor.ID != id {
		if err := s.guard.Require(actor, shared.PermUsersView); err != nil {
			return User{}, err
		}
	}
	return s.repo.Get(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context, actor shared.Actor, limit, offset int) ([]User, int, error) {
	if err := s.guard.Require(actor, shared.PermUsersView); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, limit, offset)
}

// Update applies a partial account update. Mutating another account requires
// strictly outranking its role; self-updates of non-privileged fields are
// always allowed; the role field follows the assignment rules and can never
// be changed on one's own account.
func (s *Service) Update(ctx context.Context, actor shared.Actor, targetID int64, patch Patch) (User, error) {
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if err := s.guard.CanManageTarget(actor, targetID, target.Role).Err(); err != nil {
		return User{}, err
	}
	if actor.ID != targetID {
		// Cross-account edits need the edit permission on top of the rank
		// rule; self-updates of non-privileged fields are always allowed.
		if err := s.guard.Evaluate(actor, []string{shared.PermUsersEdit}, nil).Err(); err != nil {
			return User{}, err
		}
	}

	if patch.Role != nil {
		newRole := strings.ToLower(strings.TrimSpace(*patch.Role))
		if actor.ID == targetID {
			return User{}, fmt.Errorf("%w: cannot change own role", shared.ErrForbidden)
		}
		if !s.guard.Policy().KnownRole(newRole) {
			return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, newRole)
		}
		if err := s.guard.CanAssignRole(actor, newRole).Err(); err != nil {
			return User{}, err
		}
		target.Role = newRole
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name must not be empty", shared.ErrInvalidInput)
		}
		target.Name = name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return User{}, fmt.Errorf("%w: email must not be empty", shared.ErrInvalidInput)
		}
		target.Email = email
	}
	if patch.Password != nil {
		if len(*patch.Password) < 8 {
			return User{}, fmt.Errorf("%w: password too short", shared.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		target.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, target); err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user:update", targetID, map[string]any{"role_changed": patch.Role != nil})
	return s.repo.Get(ctx, targetID)
}

// Delete removes an account. It requires strictly outranking the target's
// role or holding the wildcard; there is no self exception.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, targetID int64) error {
	target, err := s.repo.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.guard.CanDeleteTarget(actor, target.Role).Err(); err != nil {
		return err
	}
	if err := s.guard.Require(actor, shared.PermUsersDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		return err
	}
	s.record(ctx, actor, "user:delete", targetID, map[string]any{"role": target.Role})
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "users",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
