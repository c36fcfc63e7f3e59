package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"strings"
	"sync"
)

// BackupStore persists per-user sets of backup-code hashes. Replace must
// swap the whole pool atomically; Consume must remove the matched hash so
// each code verifies at most once.
type BackupStore interface {
	Replace(ctx context.Context, userID string, hashes [][32]byte) error
	Consume(ctx context.Context, userID string, hash [32]byte) (bool, error)
	Count(ctx context.Context, userID string) (int, error)
}

// MemoryBackupStore is the single-process BackupStore.
type MemoryBackupStore struct {
	mu    sync.Mutex
	pools map[string]map[[32]byte]struct{}
}

// NewMemoryBackupStore creates an empty in-process backup-code store.
func NewMemoryBackupStore() *MemoryBackupStore {
	return &MemoryBackupStore{pools: make(map[string]map[[32]byte]struct{})}
}

func (s *MemoryBackupStore) Replace(_ context.Context, userID string, hashes [][32]byte) error {
	pool := make(map[[32]byte]struct{}, len(hashes))
	for _, h := range hashes {
		pool[h] = struct{}{}
	}

	s.mu.Lock()
	s.pools[userID] = pool
	s.mu.Unlock()
	return nil
}

func (s *MemoryBackupStore) Consume(_ context.Context, userID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[userID]
	if !ok {
		return false, nil
	}
	if _, ok := pool[hash]; !ok {
		return false, nil
	}
	delete(pool, hash)
	return true, nil
}

func (s *MemoryBackupStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools[userID]), nil
}

var backupEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newBackupCode returns one formatted backup code: 5 random bytes,
// base32-encoded, lower-cased, shaped xxxx-xxxx.
func newBackupCode() (string, error) {
	var raw [5]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	s := strings.ToLower(backupEncoding.EncodeToString(raw[:]))
	return s[:4] + "-" + s[4:], nil
}

// hashBackupCode hashes the formatted code; only hashes are ever stored.
func hashBackupCode(code string) [32]byte {
	return sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(code))))
}
