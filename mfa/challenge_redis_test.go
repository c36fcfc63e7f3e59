package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisChallengeStore(t *testing.T) (*RedisChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisChallengeStore(client, ""), mr
}

func TestRedisChallengeRoundTrip(t *testing.T) {
	store, _ := newRedisChallengeStore(t)
	ctx := context.Background()

	saved := &Challenge{
		ID:          "ch-1",
		UserID:      "user-1",
		Method:      MethodSMS,
		Code:        "123456",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	require.NoError(t, store.Save(ctx, saved, 5*time.Minute))

	got, err := store.Get(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, MethodSMS, got.Method)
	assert.Equal(t, "123456", got.Code)
	assert.Equal(t, 3, got.MaxAttempts)
	assert.Equal(t, 0, got.Attempts)
	assert.WithinDuration(t, saved.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestRedisChallengeUnknownID(t *testing.T) {
	store, _ := newRedisChallengeStore(t)

	_, err := store.Get(context.Background(), "no-such-challenge")
	assert.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestRedisChallengeAttemptCounter(t *testing.T) {
	store, _ := newRedisChallengeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Challenge{
		ID: "ch-1", Code: "123456", ExpiresAt: time.Now().Add(time.Minute), MaxAttempts: 3,
	}, time.Minute))

	for want := 1; want <= 3; want++ {
		n, err := store.BumpAttempts(ctx, "ch-1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestRedisChallengeDelete(t *testing.T) {
	store, _ := newRedisChallengeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Challenge{
		ID: "ch-1", Code: "123456", ExpiresAt: time.Now().Add(time.Minute), MaxAttempts: 3,
	}, time.Minute))
	require.NoError(t, store.Delete(ctx, "ch-1"))

	_, err := store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestRedisChallengeKeyExpiresWithGrace(t *testing.T) {
	store, mr := newRedisChallengeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Challenge{
		ID: "ch-1", Code: "123456", ExpiresAt: time.Now().Add(time.Minute), MaxAttempts: 3,
	}, time.Minute))

	// Inside the grace window the hash still exists so expiry can be
	// reported as expiry, not as an unknown challenge.
	mr.FastForward(90 * time.Second)
	got, err := store.Get(ctx, "ch-1")
	require.NoError(t, err)
	assert.True(t, time.Now().After(got.ExpiresAt))

	mr.FastForward(time.Hour)
	_, err = store.Get(ctx, "ch-1")
	assert.ErrorIs(t, err, ErrChallengeInvalid)
}

func TestEngineWithRedisChallengeStore(t *testing.T) {
	store, _ := newRedisChallengeStore(t)
	e, err := NewEngine(Config{TOTPIssuer: "aegis-test"}, store, NewMemoryBackupStore(), nil, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := e.CreateSMSChallenge(ctx, "user-1", "+15550100")
	require.NoError(t, err)

	ok, err := e.VerifyChallenge(ctx, c.ID, c.Code)
	require.NoError(t, err)
	assert.True(t, ok)
}
