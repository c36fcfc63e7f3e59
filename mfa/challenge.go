package mfa

import (
	"context"
	"sync"
	"time"
)

// Method identifies how a second factor is satisfied.
type Method string

const (
	MethodTOTP   Method = "totp"
	MethodSMS    Method = "sms"
	MethodEmail  Method = "email"
	MethodBackup Method = "backup"
)

// Challenge is a pending one-time-code verification. The Code field holds
// the expected secret; callers must never echo it back to a client.
type Challenge struct {
	ID          string
	UserID      string
	Method      Method
	Code        string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// ChallengeStore persists pending challenges. BumpAttempts must be atomic
// with respect to concurrent verification attempts on the same challenge.
type ChallengeStore interface {
	Save(ctx context.Context, c *Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Challenge, error)
	BumpAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// MemoryChallengeStore is the single-process ChallengeStore. All
// operations take the store lock, which also serializes attempt counting.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewMemoryChallengeStore creates an empty in-process challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{challenges: make(map[string]*Challenge)}
}

func (s *MemoryChallengeStore) Save(_ context.Context, c *Challenge, _ time.Duration) error {
	cp := *c
	s.mu.Lock()
	s.challenges[c.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeInvalid
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryChallengeStore) BumpAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return 0, ErrChallengeInvalid
	}
	c.Attempts++
	return c.Attempts, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.challenges, id)
	s.mu.Unlock()
	return nil
}
