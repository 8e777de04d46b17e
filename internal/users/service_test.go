package users

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[int64]User
}

func newMemoryRepo(items ...User) *memoryRepo {
	m := &memoryRepo{items: make(map[int64]User, len(items))}
	for _, u := range items {
		m.items[u.ID] = u
	}
	return m
}

func (m *memoryRepo) Get(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Update(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[u.ID]; !ok {
		return shared.ErrNotFound
	}
	m.items[u.ID] = u
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) List(_ context.Context, _, _ int) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.items))
	for _, u := range m.items {
		out = append(out, u)
	}
	return out, len(out), nil
}

func strptr(s string) *string { return &s }

func seedRepo() *memoryRepo {
	return newMemoryRepo(
		User{ID: 1, Email: "admin@example.com", Name: "Admin", Role: "admin", IsActive: true},
		User{ID: 2, Email: "manager@example.com", Name: "Manager", Role: "manager", IsActive: true},
		User{ID: 3, Email: "other.manager@example.com", Name: "Other Manager", Role: "manager", IsActive: true},
		User{ID: 4, Email: "seller@example.com", Name: "Seller", Role: "seller", IsActive: true},
		User{ID: 5, Email: "customer@example.com", Name: "Customer", Role: "customer", IsActive: true},
	)
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, rbac.NewGuard(rbac.DefaultPolicy()), nil)
}

func TestGetSelfOrWithViewPermission(t *testing.T) {
	svc := newTestService(seedRepo())

	_, err := svc.Get(context.Background(), shared.Actor{}, 5)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	got, err := svc.Get(context.Background(), shared.Actor{ID: 5, Role: "customer"}, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.ID)

	_, err = svc.Get(context.Background(), shared.Actor{ID: 5, Role: "customer"}, 4)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Get(context.Background(), shared.Actor{ID: 2, Role: "manager"}, 4)
	require.NoError(t, err)
}

func TestUpdateRankRules(t *testing.T) {
	svc := newTestService(seedRepo())
	manager := shared.Actor{ID: 2, Role: "manager"}

	// Strictly lower-ranked target: allowed.
	updated, err := svc.Update(context.Background(), manager, 4, Patch{Name: strptr("Renamed")})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)

	// Equal rank: refused.
	_, err = svc.Update(context.Background(), manager, 3, Patch{Name: strptr("Nope")})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Higher rank: refused.
	_, err = svc.Update(context.Background(), manager, 1, Patch{Name: strptr("Nope")})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Wildcard bypasses the rank comparison entirely.
	admin := shared.Actor{ID: 1, Role: "admin"}
	_, err = svc.Update(context.Background(), admin, 3, Patch{Name: strptr("Via Admin")})
	require.NoError(t, err)
}

func TestUpdateSelfAllowedWithoutEditPermission(t *testing.T) {
	svc := newTestService(seedRepo())
	seller := shared.Actor{ID: 4, Role: "seller"}

	updated, err := svc.Update(context.Background(), seller, 4, Patch{Name: strptr("Self Renamed")})
	require.NoError(t, err)
	require.Equal(t, "Self Renamed", updated.Name)

	// Cross-account edits additionally need the edit permission; a seller
	// outranks customers but does not hold it.
	_, err = svc.Update(context.Background(), seller, 5, Patch{Name: strptr("Nope")})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateRoleAssignment(t *testing.T) {
	svc := newTestService(seedRepo())
	manager := shared.Actor{ID: 2, Role: "manager"}

	// Granting a strictly lower-ranked role works.
	updated, err := svc.Update(context.Background(), manager, 5, Patch{Role: strptr("seller")})
	require.NoError(t, err)
	require.Equal(t, "seller", updated.Role)

	// Granting the actor's own rank or above is refused.
	_, err = svc.Update(context.Background(), manager, 5, Patch{Role: strptr("manager")})
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Unknown roles are rejected before any rank comparison.
	_, err = svc.Update(context.Background(), manager, 5, Patch{Role: strptr("warlord")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	// Nobody changes their own role, not even admins.
	admin := shared.Actor{ID: 1, Role: "admin"}
	_, err = svc.Update(context.Background(), admin, 1, Patch{Role: strptr("customer")})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdatePasswordIsHashed(t *testing.T) {
	repo := seedRepo()
	svc := newTestService(repo)
	customer := shared.Actor{ID: 5, Role: "customer"}

	_, err := svc.Update(context.Background(), customer, 5, Patch{Password: strptr("short")})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Update(context.Background(), customer, 5, Patch{Password: strptr("long-enough-secret")})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	require.NotEqual(t, "long-enough-secret", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("long-enough-secret")))
}

func TestDeleteHasNoSelfException(t *testing.T) {
	svc := newTestService(seedRepo())
	manager := shared.Actor{ID: 2, Role: "manager"}

	// Deleting an equal-ranked account is refused even for one's own.
	err := svc.Delete(context.Background(), manager, 2)
	require.ErrorIs(t, err, shared.ErrForbidden)

	err = svc.Delete(context.Background(), manager, 3)
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Sellers outrank customers but lack the delete permission.
	err = svc.Delete(context.Background(), shared.Actor{ID: 4, Role: "seller"}, 5)
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, svc.Delete(context.Background(), manager, 5))

	admin := shared.Actor{ID: 1, Role: "admin"}
	require.NoError(t, svc.Delete(context.Background(), admin, 3))
}

func TestListRequiresViewPermission(t *testing.T) {
	svc := newTestService(seedRepo())

	_, _, err := svc.List(context.Background(), shared.Actor{ID: 5, Role: "customer"}, 10, 0)
	require.ErrorIs(t, err, shared.ErrForbidden)

	items, total, err := svc.List(context.Background(), shared.Actor{ID: 2, Role: "manager"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, items, 5)
}
