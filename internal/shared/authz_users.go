package shared

// User management permissions declared for RBAC.
const (
	PermUsersView   = "users.view"
	PermUsersEdit   = "users.edit"
	PermUsersDelete = "users.delete"

	// PermAssignRoles gates role reassignment on top of the rank rules.
	PermAssignRoles = "users.assign_roles"
)

// UserScopes lists all permissions related to user management.
func UserScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermUsersDelete,
		PermAssignRoles,
	}
}
