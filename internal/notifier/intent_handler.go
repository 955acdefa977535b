package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/platform/messaging/producers"
)

const (
	defaultDeliveryAttempts = 3
	defaultRetryBackoff     = 500 * time.Millisecond
)

// Deliverer hands one intent to its final destination
type Deliverer interface {
	Deliver(ctx context.Context, intent notification.Intent) error
}

// IntentHandler consumes notification intents, retrying transient delivery failures
// and parking the rest on the dead letter queue.
type IntentHandler struct {
	deliverer    Deliverer
	dlq          producers.DeadLetterPublisher
	logger       *slog.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

func NewIntentHandler(deliverer Deliverer, dlq producers.DeadLetterPublisher, logger *slog.Logger) *IntentHandler {
	return &IntentHandler{
		deliverer:    deliverer,
		dlq:          dlq,
		logger:       logger,
		maxAttempts:  defaultDeliveryAttempts,
		retryBackoff: defaultRetryBackoff,
	}
}

// Handle matches consumers.MessageHandler. It only returns an error when the message
// could neither be delivered nor parked, leaving the offset uncommitted.
func (h *IntentHandler) Handle(ctx context.Context, key []byte, value []byte) error {
	var intent notification.Intent
	if err := json.Unmarshal(value, &intent); err != nil {
		h.logger.Error("Failed to decode notification intent", "key", string(key), "error", err)
		return h.park(ctx, key, value, fmt.Sprintf("undecodable intent: %v", err))
	}

	logger := h.logger.With("intent_id", intent.ID.String(), "kind", string(intent.Kind))
	if intent.CorrelationID != "" {
		logger = logger.With("correlation_id", intent.CorrelationID)
	}

	var err error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		if err = h.deliverer.Deliver(ctx, intent); err == nil {
			logger.Debug("Notification delivered", "attempt", attempt)
			return nil
		}
		if errors.Is(err, ErrRejected) {
			break
		}
		logger.Warn("Notification delivery failed", "attempt", attempt, "error", err)
		if attempt < h.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.retryBackoff * time.Duration(attempt)):
			}
		}
	}

	logger.Error("Giving up on notification", "error", err)
	return h.park(ctx, key, value, err.Error())
}

func (h *IntentHandler) park(ctx context.Context, key, value []byte, reason string) error {
	err := h.dlq.PublishToDLQ(ctx, string(key), value, reason)
	if err == nil || errors.Is(err, producers.ErrDLQDisabled) {
		return nil
	}
	return fmt.Errorf("failed to park undeliverable notification: %w", err)
}
