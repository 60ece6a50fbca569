package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	RevocationKey(jti string) string
}

// RevocationChecker is the read side used by the auth middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Denylist records revoked token ids in Redis until the token would have
// expired anyway.
type Denylist struct {
	store revocationStore
	now   func() time.Time
}

// NewDenylist constructs a Redis-backed denylist.
func NewDenylist(store revocationStore) (*Denylist, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Denylist{store: store, now: time.Now}, nil
}

// Revoke marks jti as revoked until expiresAt. Already-expired tokens are ignored.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.store.Set(ctx, d.store.RevocationKey(jti), "1", ttl)
}

// IsRevoked reports whether jti was revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	_, err := d.store.Get(ctx, d.store.RevocationKey(jti))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
