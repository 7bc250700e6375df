package auth

import (
	"context"
	"errors"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/cache"
)

var ErrRevoked = errors.New("session has been signed out")

// Sessions tracks signed-out session ids until their tokens would have expired anyway.
type Sessions struct {
	store cache.Cache
	now   func() time.Time
}

func NewSessions(store cache.Cache) *Sessions {
	return &Sessions{store: store, now: time.Now}
}

func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(s.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return s.store.Set(ctx, revokedKey(claims.ID), []byte("1"), ttl)
}

func (s *Sessions) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := s.store.Get(ctx, revokedKey(sessionID))
	return ok, err
}

func revokedKey(sessionID string) string {
	return "session:revoked:" + sessionID
}
