package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// challengeKeyGrace keeps the Redis key alive slightly past the logical
// expiry so an expired challenge reports expired rather than unknown.
const challengeKeyGrace = time.Minute

// RedisChallengeStore shares pending challenges across instances. Each
// challenge is a Redis hash; attempt counting uses HINCRBY so concurrent
// verifiers observe a strictly increasing counter.
type RedisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisChallengeStore creates a Redis-backed challenge store. An empty
// prefix defaults to "amc".
func NewRedisChallengeStore(client redis.UniversalClient, prefix string) *RedisChallengeStore {
	if prefix == "" {
		prefix = "amc"
	}
	return &RedisChallengeStore{redis: client, prefix: prefix}
}

func (s *RedisChallengeStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisChallengeStore) Save(ctx context.Context, c *Challenge, ttl time.Duration) error {
	key := s.key(c.ID)
	fields := map[string]interface{}{
		"user":     c.UserID,
		"method":   string(c.Method),
		"code":     c.Code,
		"exp":      c.ExpiresAt.Unix(),
		"attempts": c.Attempts,
		"max":      c.MaxAttempts,
	}
	if err := s.redis.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := s.redis.Expire(ctx, key, ttl+challengeKeyGrace).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, id string) (*Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrChallengeInvalid
	}

	exp, _ := strconv.ParseInt(fields["exp"], 10, 64)
	attempts, _ := strconv.Atoi(fields["attempts"])
	maxAttempts, _ := strconv.Atoi(fields["max"])

	return &Challenge{
		ID:          id,
		UserID:      fields["user"],
		Method:      Method(fields["method"]),
		Code:        fields["code"],
		ExpiresAt:   time.Unix(exp, 0),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}, nil
}

func (s *RedisChallengeStore) BumpAttempts(ctx context.Context, id string) (int, error) {
	n, err := s.redis.HIncrBy(ctx, s.key(id), "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return int(n), nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
