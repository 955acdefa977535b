// Package redis keeps short-lived request state in Redis. It backs the
// Idempotency-Key handling of the HTTP gateway.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/virtupay-ledger/internal/domain/shared"
)

const keyPrefix = "idempotency:"

var (
	// ErrInProgress means a request with the same key has not finished yet
	ErrInProgress = errors.New("a request with this idempotency key is still being processed")
	// ErrKeyReused means the key was first used for a different request
	ErrKeyReused = errors.New("idempotency key was already used for a different request")
)

// StoredResponse is what a replayed request receives. Status is zero while the
// first request is still running.
type StoredResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// IdempotencyStore records the outcome of mutating requests by Idempotency-Key
type IdempotencyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdempotencyStore(logger *slog.Logger, client goredis.Cmdable, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "idempotency_store"),
	}
}

// Begin claims key for a request identified by fingerprint. It returns nil when
// the caller should process the request, or the stored response to replay.
func (s *IdempotencyStore) Begin(ctx context.Context, key, fingerprint string) (*StoredResponse, error) {
	marker, err := json.Marshal(StoredResponse{Fingerprint: fingerprint})
	if err != nil {
		return nil, err
	}

	claimed, err := s.client.SetNX(ctx, keyPrefix+key, string(marker), s.ttl).Result()
	if err != nil {
		s.logger.Error("Failed to claim idempotency key", "key", key, "error", err)
		return nil, shared.PersistenceError("claim idempotency key", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Expired between the two calls
			return nil, ErrInProgress
		}
		s.logger.Error("Failed to read idempotency key", "key", key, "error", err)
		return nil, shared.PersistenceError("read idempotency key", err)
	}

	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, shared.PersistenceError("decode idempotency record", err)
	}
	if stored.Fingerprint != fingerprint {
		return nil, ErrKeyReused
	}
	if stored.Status == 0 {
		return nil, ErrInProgress
	}
	return &stored, nil
}

// Complete stores the response so retries with the same key replay it
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, string(raw), s.ttl).Err(); err != nil {
		s.logger.Error("Failed to store idempotent response", "key", key, "error", err)
		return shared.PersistenceError("store idempotent response", err)
	}
	return nil
}

// Release drops the claim so the request can be retried, e.g. after a server error
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		s.logger.Error("Failed to release idempotency key", "key", key, "error", err)
		return shared.PersistenceError("release idempotency key", err)
	}
	return nil
}
