package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/virtupay-ledger/internal/data/redis"
	"github.com/virtupay-ledger/internal/domain/org"
)

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Begin(ctx context.Context, key, fingerprint string) (*redis.StoredResponse, error) {
	args := m.Called(ctx, key, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*redis.StoredResponse), args.Error(1)
}

func (m *mockIdempotencyStore) Complete(ctx context.Context, key string, resp redis.StoredResponse) error {
	return m.Called(ctx, key, resp).Error(0)
}

func (m *mockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func idempotentRouter(store IdempotencyStore, actor org.Actor, status int, calls *int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(ActorKey, actor) })
	router.Use(Idempotency(store, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))))
	router.POST("/fund", func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"ok": status < 400})
	})
	return router
}

func postFund(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/fund", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestIdempotencyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	actor := org.Actor{MembershipID: uuid.New(), OrganizationID: uuid.New(), Role: org.RoleAdmin}
	scopedKey := actor.MembershipID.String() + ":key-1"

	t.Run("PassesThroughWithoutKey", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		calls := 0
		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "", `{}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 1, calls)
		store.AssertNotCalled(t, "Begin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StoresFirstResponse", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.MatchedBy(func(fp string) bool {
			return strings.HasPrefix(fp, "POST /fund|")
		})).Return(nil, nil)
		store.On("Complete", mock.Anything, scopedKey, mock.MatchedBy(func(r redis.StoredResponse) bool {
			return r.Status == http.StatusCreated && string(r.Body) == `{"ok":true}`
		})).Return(nil)
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "key-1", `{"amount":100}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 1, calls)
		assert.Empty(t, rr.Header().Get(IdempotentReplayedHeader))
		store.AssertExpectations(t)
	})

	t.Run("ReplaysStoredResponse", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).
			Return(&redis.StoredResponse{Status: http.StatusCreated, Body: []byte(`{"ok":true}`)}, nil)
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "key-1", `{"amount":100}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 0, calls)
		assert.Equal(t, "true", rr.Header().Get(IdempotentReplayedHeader))
		assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	})

	t.Run("SameBodyGivesSameFingerprint", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		var fingerprints []string
		store.On("Begin", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { fingerprints = append(fingerprints, args.String(2)) }).
			Return(nil, nil)
		store.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		calls := 0
		router := idempotentRouter(store, actor, http.StatusOK, &calls)

		postFund(router, "a", `{"amount":1}`)
		postFund(router, "b", `{"amount":1}`)
		postFund(router, "c", `{"amount":2}`)

		assert.Equal(t, fingerprints[0], fingerprints[1])
		assert.NotEqual(t, fingerprints[0], fingerprints[2])
	})

	t.Run("KeyReusedWithDifferentBody", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).Return(nil, redis.ErrKeyReused)
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "key-1", `{"amount":5}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, 0, calls)
	})

	t.Run("RequestStillInProgress", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).Return(nil, redis.ErrInProgress)
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "key-1", `{}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, 0, calls)
	})

	t.Run("StoreUnavailable", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).Return(nil, errors.New("redis down"))
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusCreated, &calls), "key-1", `{}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, 0, calls)
	})

	t.Run("ServerErrorReleasesKey", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).Return(nil, nil)
		store.On("Release", mock.Anything, scopedKey).Return(nil)
		calls := 0

		rr := postFund(idempotentRouter(store, actor, http.StatusInternalServerError, &calls), "key-1", `{}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		store.AssertCalled(t, "Release", mock.Anything, scopedKey)
		store.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ClientErrorIsReplayed", func(t *testing.T) {
		store := new(mockIdempotencyStore)
		store.On("Begin", mock.Anything, scopedKey, mock.Anything).Return(nil, nil)
		store.On("Complete", mock.Anything, scopedKey, mock.MatchedBy(func(r redis.StoredResponse) bool {
			return r.Status == http.StatusUnprocessableEntity
		})).Return(nil)
		calls := 0

		postFund(idempotentRouter(store, actor, http.StatusUnprocessableEntity, &calls), "key-1", `{}`)
		store.AssertExpectations(t)
	})
}
