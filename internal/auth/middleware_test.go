package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopcore/shopcore/internal/shared"
)

func TestResolveActorMiddleware(t *testing.T) {
	store, _ := newTestStore(t)
	actor := shared.Actor{ID: 7, Role: "manager"}
	token, err := store.Issue(context.Background(), actor)
	require.NoError(t, err)

	var seen shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware{Store: store}.ResolveActor(next)

	t.Run("no credential passes through unauthenticated", func(t *testing.T) {
		seen = shared.Actor{ID: -1}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, seen.IsZero())
	})

	t.Run("valid token attaches the actor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, actor, seen)
	})

	t.Run("stale token is rejected", func(t *testing.T) {
		require.NoError(t, store.Revoke(context.Background(), token))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
