package token

import (
	"context"
	"sync"
	"time"
)

// Blacklist is the revocation store consulted on every validation. Add is
// idempotent; IsBlacklisted must treat an entry whose expiry has passed as
// absent.
type Blacklist interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// MemoryBlacklist is an in-process Blacklist. Reads take a shared lock;
// writes take an exclusive lock held only for the map operation, so many
// concurrent validations never serialize behind each other.
//
// Expired entries are collected lazily: a check that finds a stale entry
// deletes it. No background sweep is required.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlacklist creates an empty in-process blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add records a revoked token through expiresAt. Re-adding an existing
// token is a no-op.
func (b *MemoryBlacklist) Add(_ context.Context, token string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[token]; ok {
		return nil
	}
	b.entries[token] = expiresAt
	return nil
}

// IsBlacklisted reports whether token has a live revocation entry. A stale
// entry is removed as a side effect.
func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, token string) (bool, error) {
	b.mu.RLock()
	expiresAt, ok := b.entries[token]
	b.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if b.now().Before(expiresAt) {
		return true, nil
	}

	// Entry outlived the token it was blocking; drop it.
	b.mu.Lock()
	if current, ok := b.entries[token]; ok && !b.now().Before(current) {
		delete(b.entries, token)
	}
	b.mu.Unlock()
	return false, nil
}

// Len reports the number of live and stale entries currently held.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
