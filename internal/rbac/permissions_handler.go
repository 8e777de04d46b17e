package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/shopcore/internal/platform/httpx"
	"github.com/shopcore/shopcore/internal/shared"
)

// PermissionsHandler exposes the permission catalog and the compiled role
// table for administrative introspection.
type PermissionsHandler struct {
	guard *Guard
	rbac  Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(guard *Guard, rbacMW Middleware) *PermissionsHandler {
	return &PermissionsHandler{guard: guard, rbac: rbacMW}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView))
		r.Get("/", h.listPermissions)
		r.Get("/roles", h.listRoles)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string][]string{
		"catalog": shared.CatalogScopes(),
		"sales":   shared.SalesScopes(),
		"users":   shared.UserScopes(),
	})
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.guard.Policy().Describe())
}
