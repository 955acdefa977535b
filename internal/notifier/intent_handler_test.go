package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/platform/messaging/producers"
)

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, intent notification.Intent) error {
	return m.Called(ctx, intent).Error(0)
}

type MockDLQ struct {
	mock.Mock
}

func (m *MockDLQ) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	return m.Called(ctx, key, value, reason).Error(0)
}

func (m *MockDLQ) Close() error {
	return m.Called().Error(0)
}

func newTestHandler(deliverer Deliverer, dlq producers.DeadLetterPublisher) *IntentHandler {
	h := NewIntentHandler(deliverer, dlq, slog.Default())
	h.retryBackoff = time.Millisecond
	return h
}

func TestIntentHandler_Handle(t *testing.T) {
	ctx := context.Background()
	intent := testIntent()
	value, err := json.Marshal(intent)
	require.NoError(t, err)
	key := []byte(intent.Key())

	t.Run("DeliversOnFirstAttempt", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		deliverer.On("Deliver", ctx, mock.MatchedBy(func(i notification.Intent) bool { return i.ID == intent.ID })).Return(nil).Once()

		require.NoError(t, newTestHandler(deliverer, dlq).Handle(ctx, key, value))
		deliverer.AssertExpectations(t)
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RetriesTransientFailure", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		deliverer.On("Deliver", ctx, mock.Anything).Return(errors.New("timeout")).Once()
		deliverer.On("Deliver", ctx, mock.Anything).Return(nil).Once()

		require.NoError(t, newTestHandler(deliverer, dlq).Handle(ctx, key, value))
		deliverer.AssertNumberOfCalls(t, "Deliver", 2)
	})

	t.Run("ExhaustedRetriesGoToDLQ", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		deliverer.On("Deliver", ctx, mock.Anything).Return(errors.New("webhook returned status 503"))
		dlq.On("PublishToDLQ", ctx, string(key), value, "webhook returned status 503").Return(nil).Once()

		require.NoError(t, newTestHandler(deliverer, dlq).Handle(ctx, key, value))
		deliverer.AssertNumberOfCalls(t, "Deliver", defaultDeliveryAttempts)
		dlq.AssertExpectations(t)
	})

	t.Run("RejectionSkipsRetries", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		deliverer.On("Deliver", ctx, mock.Anything).Return(ErrRejected).Once()
		dlq.On("PublishToDLQ", ctx, string(key), value, mock.Anything).Return(producers.ErrDLQDisabled).Once()

		require.NoError(t, newTestHandler(deliverer, dlq).Handle(ctx, key, value))
		deliverer.AssertNumberOfCalls(t, "Deliver", 1)
	})

	t.Run("UndecodableMessageIsParked", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		dlq.On("PublishToDLQ", ctx, "k", []byte("{"), mock.AnythingOfType("string")).Return(nil).Once()

		require.NoError(t, newTestHandler(deliverer, dlq).Handle(ctx, []byte("k"), []byte("{")))
		deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
	})

	t.Run("DLQFailureLeavesOffsetUncommitted", func(t *testing.T) {
		deliverer, dlq := &MockDeliverer{}, &MockDLQ{}
		deliverer.On("Deliver", ctx, mock.Anything).Return(ErrRejected).Once()
		dlq.On("PublishToDLQ", ctx, string(key), value, mock.Anything).Return(errors.New("kafka down")).Once()

		assert.Error(t, newTestHandler(deliverer, dlq).Handle(ctx, key, value))
	})
}
