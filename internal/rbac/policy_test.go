package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopcore/shopcore/internal/shared"
)

func TestNewPolicyNormalizesNamesAndTokens(t *testing.T) {
	policy := NewPolicy(map[string]Role{
		"  Manager ": {Rank: 3, Permissions: []string{" Catalog.Product.Edit ", ""}},
	})

	require.True(t, policy.KnownRole("manager"))
	require.True(t, policy.KnownRole("MANAGER"))
	require.True(t, policy.HasPermission("manager", "catalog.product.edit"))
	require.True(t, policy.HasPermission("Manager", "Catalog.Product.Edit"))
	require.False(t, policy.HasPermission("manager", ""))
}

func TestUnknownRoleHoldsNothing(t *testing.T) {
	policy := DefaultPolicy()

	require.False(t, policy.KnownRole("ghost"))
	require.Zero(t, policy.RankOf("ghost"))
	require.False(t, policy.HasPermission("ghost", shared.PermProductView))
	require.False(t, policy.HasWildcard("ghost"))
}

func TestWildcardSatisfiesEveryToken(t *testing.T) {
	policy := DefaultPolicy()

	require.True(t, policy.HasWildcard("admin"))
	require.True(t, policy.HasPermission("admin", shared.PermUsersDelete))
	require.True(t, policy.HasPermission("admin", "anything.at.all"))
	require.False(t, policy.HasWildcard("manager"))
}

func TestAllowsActionTranslatesDottedTokens(t *testing.T) {
	policy := DefaultPolicy()

	require.True(t, policy.AllowsAction("manager", "catalog.product", "edit"))
	require.False(t, policy.AllowsAction("customer", "catalog.product", "edit"))
}

func TestDefaultPolicyRanks(t *testing.T) {
	policy := DefaultPolicy()

	require.Equal(t, 100, policy.RankOf("admin"))
	require.Equal(t, 3, policy.RankOf("manager"))
	require.Equal(t, 2, policy.RankOf("seller"))
	require.Equal(t, 1, policy.RankOf("delivery"))
	require.Equal(t, 1, policy.RankOf("customer"))
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	data := `{"auditor": {"rank": 1, "permissions": ["sales.order.view", "catalog.product.view"]}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	require.True(t, policy.KnownRole("auditor"))
	require.True(t, policy.HasPermission("auditor", shared.PermOrderView))
	require.False(t, policy.HasPermission("auditor", shared.PermOrderManage))
}

func TestLoadPolicyRejectsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := LoadPolicy(path)
	require.Error(t, err)
}
