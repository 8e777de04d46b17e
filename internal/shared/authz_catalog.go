package shared

// Catalog permissions declared for RBAC.
const (
	PermProductView   = "catalog.product.view"
	PermProductCreate = "catalog.product.create"
	PermProductEdit   = "catalog.product.edit"
	PermProductDelete = "catalog.product.delete"
)

// CatalogScopes lists all permissions related to the catalog module.
func CatalogScopes() []string {
	return []string{
		PermProductView,
		PermProductCreate,
		PermProductEdit,
		PermProductDelete,
	}
}
