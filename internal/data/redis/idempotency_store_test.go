package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtupay-ledger/internal/domain/shared"
)

func marker(t *testing.T, r StoredResponse) string {
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	return string(raw)
}

func TestIdempotencyStore_Begin(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	pending := marker(t, StoredResponse{Fingerprint: "POST /cards|abc"})

	t.Run("first request claims the key", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, ttl)
		mock.ExpectSetNX("idempotency:k1", pending, ttl).SetVal(true)

		stored, err := store.Begin(ctx, "k1", "POST /cards|abc")
		assert.NoError(t, err)
		assert.Nil(t, stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed request is replayed", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, ttl)
		done := StoredResponse{Fingerprint: "POST /cards|abc", Status: 201, Body: json.RawMessage(`{"id":"1"}`)}
		mock.ExpectSetNX("idempotency:k1", pending, ttl).SetVal(false)
		mock.ExpectGet("idempotency:k1").SetVal(marker(t, done))

		stored, err := store.Begin(ctx, "k1", "POST /cards|abc")
		require.NoError(t, err)
		assert.Equal(t, 201, stored.Status)
		assert.JSONEq(t, `{"id":"1"}`, string(stored.Body))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("request still running", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, ttl)
		mock.ExpectSetNX("idempotency:k1", pending, ttl).SetVal(false)
		mock.ExpectGet("idempotency:k1").SetVal(pending)

		_, err := store.Begin(ctx, "k1", "POST /cards|abc")
		assert.ErrorIs(t, err, ErrInProgress)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key reused for another request", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, ttl)
		other := marker(t, StoredResponse{Fingerprint: "POST /cards|other"})
		mock.ExpectSetNX("idempotency:k1", other, ttl).SetVal(false)
		mock.ExpectGet("idempotency:k1").SetVal(pending)

		_, err := store.Begin(ctx, "k1", "POST /cards|other")
		assert.ErrorIs(t, err, ErrKeyReused)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis unavailable", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, ttl)
		mock.ExpectSetNX("idempotency:k1", pending, ttl).SetErr(errors.New("connection refused"))

		_, err := store.Begin(ctx, "k1", "POST /cards|abc")
		assert.ErrorIs(t, err, shared.ErrPersistence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIdempotencyStore_CompleteAndRelease(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(slog.New(slog.NewTextHandler(io.Discard, nil)), client, time.Minute)

	resp := StoredResponse{Fingerprint: "f", Status: 200, Body: json.RawMessage(`{"ok":true}`)}
	mock.ExpectSet("idempotency:k2", marker(t, resp), time.Minute).SetVal("OK")
	mock.ExpectDel("idempotency:k3").SetVal(1)

	assert.NoError(t, store.Complete(ctx, "k2", resp))
	assert.NoError(t, store.Release(ctx, "k3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
