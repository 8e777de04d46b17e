package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shopcore/internal/shared"
)

func newTestStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client, time.Hour), mr
}

func TestIssueAndResolve(t *testing.T) {
	store, _ := newTestStore(t)
	actor := shared.Actor{ID: 42, Role: "seller"}

	token, err := store.Issue(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := store.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, actor, resolved)
}

func TestIssueRejectsZeroActor(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Issue(context.Background(), shared.Actor{})
	require.Error(t, err)
}

func TestResolveUnknownToken(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = store.Resolve(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestResolveExpiredToken(t *testing.T) {
	store, mr := newTestStore(t)
	actor := shared.Actor{ID: 42, Role: "seller"}

	token, err := store.Issue(context.Background(), actor)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestRevoke(t *testing.T) {
	store, _ := newTestStore(t)
	actor := shared.Actor{ID: 42, Role: "seller"}

	token, err := store.Issue(context.Background(), actor)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(context.Background(), token))
	_, err = store.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	require.NoError(t, store.Revoke(context.Background(), "unknown"))
	require.NoError(t, store.Revoke(context.Background(), ""))
}
