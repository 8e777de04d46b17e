package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopcore/shopcore/internal/platform/httpx"
	"github.com/shopcore/shopcore/internal/shared"
)

// Middleware resolves the bearer token into an actor and attaches it to the
// request context. Requests without a credential pass through unauthenticated;
// routes decide whether that is acceptable. A credential that fails to resolve
// is rejected outright.
type Middleware struct {
	Store  *TokenStore
	Logger *slog.Logger
}

// ResolveActor is the http middleware entry point.
func (m Middleware) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Store.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("resolve actor", slog.Any("error", err))
			}
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		ctx := shared.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
