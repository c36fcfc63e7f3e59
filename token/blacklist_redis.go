package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlacklist is a Blacklist shared across instances. Keys are the
// SHA-256 of the token (raw JWTs are too large and too sensitive to use as
// Redis keys) and carry a TTL equal to the token's remaining lifetime, so
// Redis expiry subsumes the lazy garbage collection the in-memory store
// does by hand.
type RedisBlacklist struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBlacklist creates a Redis-backed blacklist. An empty prefix
// defaults to "abl".
func NewRedisBlacklist(client redis.UniversalClient, prefix string) *RedisBlacklist {
	if prefix == "" {
		prefix = "abl"
	}
	return &RedisBlacklist{redis: client, prefix: prefix}
}

func (b *RedisBlacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return b.prefix + ":" + hex.EncodeToString(sum[:])
}

// Add records a revoked token until expiresAt. Tokens already past expiry
// are not stored. SET is idempotent by nature.
func (b *RedisBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.redis.Set(ctx, b.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether a live revocation entry exists for token.
func (b *RedisBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}
