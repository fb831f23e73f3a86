package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore tracks tokens that must no longer be accepted even though
// they have not expired.
type RevocationStore interface {
	// Revoke rejects a single token until expiresAt.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// RevokeAllForUser rejects every token of userID issued before the given
	// time. ttl bounds how long the cutoff must be remembered.
	RevokeAllForUser(ctx context.Context, userID int64, before time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string, userID int64, issuedAt time.Time) (bool, error)
}

// iat has second resolution, so cutoffs are compared at that resolution too.
func issuedBefore(issuedAt, cutoff time.Time) bool {
	return issuedAt.Truncate(time.Second).Before(cutoff.Truncate(time.Second))
}

type userCutoff struct {
	before    time.Time
	expiresAt time.Time
}

// MemoryRevocationStore keeps revocations in process. Expired entries are
// removed by a background loop every cleanupInterval.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti -> token expiry
	users   map[int64]userCutoff
	done    chan struct{}
	once    sync.Once
}

const cleanupInterval = 5 * time.Minute

func NewMemoryRevocationStore() *MemoryRevocationStore {
	s := &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		users:   make(map[int64]userCutoff),
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) RevokeAllForUser(_ context.Context, userID int64, before time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = userCutoff{before: before, expiresAt: before.Add(ttl)}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string, userID int64, issuedAt time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[jti]; ok {
		return true, nil
	}
	if cut, ok := s.users[userID]; ok && issuedBefore(issuedAt, cut.before) {
		return true, nil
	}
	return false, nil
}

// Count returns the number of individually revoked tokens.
func (s *MemoryRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *MemoryRevocationStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

// cleanup drops entries whose tokens are past their natural expiry.
func (s *MemoryRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, jti)
		}
	}
	for uid, cut := range s.users {
		if now.After(cut.expiresAt) {
			delete(s.users, uid)
		}
	}
}
