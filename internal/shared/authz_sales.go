package shared

// Sales permissions declared for RBAC.
const (
	PermOrderView  = "sales.order.view"
	PermOrderPlace = "sales.order.place"

	// PermOrderManage allows setting any valid order status.
	PermOrderManage = "sales.order.manage"

	// PermOrderDeliver allows marking an order as delivered. A role holding
	// this without PermOrderManage cannot set any other status.
	PermOrderDeliver = "sales.order.deliver"
)

// SalesScopes lists all permissions related to the sales module.
func SalesScopes() []string {
	return []string{
		PermOrderView,
		PermOrderPlace,
		PermOrderManage,
		PermOrderDeliver,
	}
}
