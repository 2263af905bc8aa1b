package oauth

import (
	"context"
	"sync"
	"time"
)

// memoryStateStore implements StateStore with an in-process map. Used in
// development setups without Redis and throughout the tests. Semantics
// match the Redis store: one pending state per session, consumed on
// first validation attempt.
type memoryStateStore struct {
	mu      sync.Mutex
	pending map[string]memoryState
}

type memoryState struct {
	token   string
	expires time.Time
}

// NewMemoryStateStore creates an in-memory state store.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{pending: make(map[string]memoryState)}
}

func (s *memoryStateStore) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := NewStateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pending[sessionID] = memoryState{token: token, expires: time.Now().Add(stateTTL)}
	s.mu.Unlock()

	return token, nil
}

func (s *memoryStateStore) Validate(ctx context.Context, sessionID, presented string) error {
	s.mu.Lock()
	entry, ok := s.pending[sessionID]
	delete(s.pending, sessionID)
	s.mu.Unlock()

	if !ok || time.Now().After(entry.expires) {
		return ErrStateInvalid
	}
	if presented == "" || entry.token != presented {
		return ErrStateInvalid
	}

	return nil
}
