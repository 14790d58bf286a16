package token

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Expired entries are treated as absent by readers and reaped by
// DeleteExpired.
type MemoryStore struct {
	mu          sync.RWMutex
	byClient    map[string]Token
	byJTI       map[string]Token
	clientIndex map[string]map[string]struct{}
	clock       clockwork.Clock
}

// NewMemoryStore creates an empty in-process token store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

// NewMemoryStoreWithClock creates a store with an injected clock for
// deterministic TTL tests.
func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		byClient:    make(map[string]Token),
		byJTI:       make(map[string]Token),
		clientIndex: make(map[string]map[string]struct{}),
		clock:       clock,
	}
}

// GetByClientID returns the client's current token.
func (s *MemoryStore) GetByClientID(_ context.Context, clientID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byClient[clientID]
	if !ok || t.Expired(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return &t, nil
}

// GetByJTI returns a live token by its unique identifier.
func (s *MemoryStore) GetByJTI(_ context.Context, jti string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byJTI[jti]
	if !ok || t.Expired(s.clock.Now()) {
		return nil, ErrNotFound
	}
	return &t, nil
}

// Save stores the token under both keys. Tokens lacking identity fields or
// already expired are rejected.
func (s *MemoryStore) Save(_ context.Context, t *Token) error {
	if t == nil || t.ClientID == "" || t.JTI == "" || t.Value == "" {
		return ErrInvalidToken
	}
	if t.Expired(s.clock.Now()) {
		return ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byClient[t.ClientID] = *t
	s.byJTI[t.JTI] = *t
	idx, ok := s.clientIndex[t.ClientID]
	if !ok {
		idx = make(map[string]struct{})
		s.clientIndex[t.ClientID] = idx
	}
	idx[t.JTI] = struct{}{}
	return nil
}

// DeleteByClientID removes every token of the client, returning the number
// of live tokens dropped. Calling it again is a no-op.
func (s *MemoryStore) DeleteByClientID(_ context.Context, clientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var count int64
	for jti := range s.clientIndex[clientID] {
		if t, ok := s.byJTI[jti]; ok {
			if !t.Expired(now) {
				count++
			}
			delete(s.byJTI, jti)
		}
	}
	delete(s.clientIndex, clientID)
	delete(s.byClient, clientID)
	return count, nil
}

// DeleteByJTI removes a single token. Absent tokens are a no-op.
func (s *MemoryStore) DeleteByJTI(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byJTI[jti]
	if !ok {
		return nil
	}
	delete(s.byJTI, jti)
	if idx, ok := s.clientIndex[t.ClientID]; ok {
		delete(idx, jti)
		if len(idx) == 0 {
			delete(s.clientIndex, t.ClientID)
		}
	}
	if current, ok := s.byClient[t.ClientID]; ok && current.JTI == jti {
		delete(s.byClient, t.ClientID)
	}
	return nil
}

// DeleteExpired reaps expired entries and returns how many were removed.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var count int64
	for jti, t := range s.byJTI {
		if !t.Expired(now) {
			continue
		}
		count++
		delete(s.byJTI, jti)
		if idx, ok := s.clientIndex[t.ClientID]; ok {
			delete(idx, jti)
			if len(idx) == 0 {
				delete(s.clientIndex, t.ClientID)
			}
		}
		if current, ok := s.byClient[t.ClientID]; ok && current.JTI == jti {
			delete(s.byClient, t.ClientID)
		}
	}
	return count, nil
}
