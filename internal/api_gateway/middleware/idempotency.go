package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/virtupay-ledger/internal/data/redis"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength  = 255
)

// IdempotencyStore claims keys and stores the responses replayed for them
type IdempotencyStore interface {
	Begin(ctx context.Context, key, fingerprint string) (*redis.StoredResponse, error)
	Complete(ctx context.Context, key string, resp redis.StoredResponse) error
	Release(ctx context.Context, key string) error
}

// Idempotency replays the stored response of a request carrying an Idempotency-Key
// that was already processed. Requests without the header pass through untouched.
// Keys are scoped to the authenticated membership, so it must run after Auth.
func Idempotency(store IdempotencyStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "Unable to read request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if actor, ok := GetActor(c); ok {
			key = actor.MembershipID.String() + ":" + key
		}
		sum := sha256.Sum256(body)
		fingerprint := c.Request.Method + " " + c.FullPath() + "|" + hex.EncodeToString(sum[:])

		stored, err := store.Begin(c.Request.Context(), key, fingerprint)
		switch {
		case errors.Is(err, redis.ErrKeyReused):
			abortWithError(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", err.Error())
			return
		case errors.Is(err, redis.ErrInProgress):
			abortWithError(c, http.StatusConflict, "CONFLICT", err.Error())
			return
		case err != nil:
			logger.Error("Idempotency check failed", "error", err, "correlation_id", GetCorrelationID(c))
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
			return
		case stored != nil:
			c.Header(IdempotentReplayedHeader, "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		// The outcome must be recorded even if the client has gone away
		ctx := context.WithoutCancel(c.Request.Context())
		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(ctx, key); err != nil {
				logger.Warn("Failed to release idempotency key", "error", err)
			}
			return
		}
		if err := store.Complete(ctx, key, redis.StoredResponse{
			Fingerprint: fingerprint,
			Status:      status,
			Body:        writer.body.Bytes(),
		}); err != nil {
			logger.Warn("Failed to store idempotent response", "error", err)
		}
	}
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
