package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "oauth_state:"
	stateTTL       = 10 * time.Minute
)

// ErrStateInvalid means the presented state was missing, mismatched, or
// already consumed. Callers must fail the callback before any provider
// call.
var ErrStateInvalid = errors.New("state missing, mismatched, or already used")

// StateStore issues and validates one-time CSRF state tokens, keyed by
// browser session.
type StateStore interface {
	// Issue generates a new state token for the session, replacing any
	// pending one.
	Issue(ctx context.Context, sessionID string) (string, error)

	// Validate succeeds iff the session holds a state equal to presented.
	// The pending state is consumed either way: a mismatched presentation
	// is indistinguishable from a replay and burns the token too.
	Validate(ctx context.Context, sessionID, presented string) error
}

// NewStateToken returns 16 random bytes, hex-encoded.
func NewStateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// redisStateStore implements StateStore using Redis.
type redisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client) StateStore {
	return &redisStateStore{client: client}
}

func (s *redisStateStore) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := NewStateToken()
	if err != nil {
		return "", err
	}

	key := stateKeyPrefix + sessionID
	if err := s.client.Set(ctx, key, token, stateTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return token, nil
}

func (s *redisStateStore) Validate(ctx context.Context, sessionID, presented string) error {
	key := stateKeyPrefix + sessionID

	// GETDEL consumes atomically; a concurrent second callback loses.
	stored, err := s.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return ErrStateInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to validate state: %w", err)
	}

	if presented == "" || stored != presented {
		return ErrStateInvalid
	}

	return nil
}
