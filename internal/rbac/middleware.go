package rbac

import (
	"log/slog"
	"net/http"

	"github.com/shopcore/shopcore/internal/platform/httpx"
	"github.com/shopcore/shopcore/internal/shared"
)

// Middleware wires guard checks in front of HTTP handlers.
type Middleware struct {
	Guard  *Guard
	Logger *slog.Logger
}

// RequireAny rejects the request unless the actor holds at least one of the
// required permissions (or the wildcard). Ownership overlays cannot be
// checked before the resource is loaded, so handlers needing the own-variant
// path evaluate the guard themselves with the fetched resource.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			decision := m.Guard.Evaluate(actor, perms, nil)
			if err := decision.Err(); err != nil {
				if m.Logger != nil && decision.Kind == DenyForbidden {
					m.Logger.Warn("authorization denied",
						slog.Int64("actor_id", actor.ID),
						slog.String("role", actor.Role),
						slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor rejects unauthenticated requests without any permission check.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.ActorFromContext(r.Context()).IsZero() {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
