// Package session holds the transient server-side state of the two-step
// signup handshake. A pending registration is written on step 1, consumed
// on step 2, and expires via TTL if the client abandons the flow, so no
// partial signup ever outlives its handshake.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"artisan-market/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNoPending = errors.New("no pending registration")
)

const pendingKeyPrefix = "signup:pending:"

// PendingStore keeps pending registrations in Redis, keyed by an opaque
// token carried in a client cookie.
type PendingStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPendingStore creates a PendingStore with the given entry lifetime.
func NewPendingStore(rdb *redis.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{rdb: rdb, ttl: ttl}
}

// Put stores a pending registration and returns the token identifying it.
func (s *PendingStore) Put(ctx context.Context, pending *domain.PendingRegistration) (string, error) {
	payload, err := json.Marshal(pending)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending registration: %w", err)
	}

	token := uuid.New().String()
	if err := s.rdb.Set(ctx, pendingKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store pending registration: %w", err)
	}

	return token, nil
}

// Get retrieves the pending registration for a token. Returns ErrNoPending
// for unknown or expired tokens.
func (s *PendingStore) Get(ctx context.Context, token string) (*domain.PendingRegistration, error) {
	payload, err := s.rdb.Get(ctx, pendingKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoPending
		}
		return nil, fmt.Errorf("failed to load pending registration: %w", err)
	}

	pending := &domain.PendingRegistration{}
	if err := json.Unmarshal(payload, pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending registration: %w", err)
	}

	return pending, nil
}

// Delete invalidates a pending registration. Deleting an already-expired
// token is not an error.
func (s *PendingStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, pendingKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete pending registration: %w", err)
	}
	return nil
}
