// Package auth resolves opaque credentials into actors. Token issuance and
// verification semantics live with the identity provider; this package only
// maps an opaque token onto the Actor it was issued for.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shopcore/shopcore/internal/shared"
)

const tokenKeyPrefix = "actor_token:"

// TokenStore keeps issued tokens in Redis so every stateless replica resolves
// the same credential to the same actor.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue registers a new opaque token for the actor and returns it.
func (s *TokenStore) Issue(ctx context.Context, actor shared.Actor) (string, error) {
	if actor.IsZero() {
		return "", errors.New("auth: actor required")
	}
	payload, err := json.Marshal(actor)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Resolve returns the actor a token was issued for. Unknown or expired
// tokens yield ErrUnauthenticated.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	if token == "" {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	payload, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, shared.ErrUnauthenticated
		}
		return shared.Actor{}, fmt.Errorf("auth: resolve token: %w", err)
	}
	var actor shared.Actor
	if err := json.Unmarshal(payload, &actor); err != nil {
		return shared.Actor{}, fmt.Errorf("auth: decode token payload: %w", err)
	}
	if actor.IsZero() {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	return actor, nil
}

// Revoke removes a token. Revoking an unknown token is not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, tokenKeyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}
