// Package notifier carries notification intents from the ledger core to the outside
// world: the gateway hands them to a bounded worker pool that publishes to Kafka,
// and the ledger worker consumes them and calls the configured webhook.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/domain/shared"
)

const publishTimeout = 5 * time.Second

// IntentPublisher is the transport the dispatcher hands intents to
type IntentPublisher interface {
	PublishIntent(ctx context.Context, intent notification.Intent) error
}

// Dispatcher is a notification.Sink that never blocks its caller. Intents are
// published from a bounded pool; when the pool is saturated they are dropped
// and logged.
type Dispatcher struct {
	publisher IntentPublisher
	pool      *ants.Pool
	logger    *slog.Logger
}

var _ notification.Sink = (*Dispatcher)(nil)

func NewDispatcher(publisher IntentPublisher, size int, logger *slog.Logger) (*Dispatcher, error) {
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		publisher: publisher,
		pool:      pool,
		logger:    logger,
	}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, intent notification.Intent) {
	if intent.CorrelationID == "" {
		intent.CorrelationID = shared.CorrelationIDFromContext(ctx)
	}
	logger := d.logger.With(
		"intent_id", intent.ID.String(),
		"kind", string(intent.Kind),
		"correlation_id", intent.CorrelationID,
	)

	// The request that produced the intent may finish before the publish does.
	publishCtx := context.WithoutCancel(ctx)

	err := d.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(publishCtx, publishTimeout)
		defer cancel()

		if err := d.publisher.PublishIntent(ctx, intent); err != nil {
			logger.Warn("Dropping notification intent after publish failure", "error", err)
			return
		}
		logger.Debug("Notification intent published")
	})
	if err != nil {
		logger.Warn("Dropping notification intent, dispatcher pool unavailable", "error", err)
	}
}

// Shutdown waits up to timeout for in-flight publishes, then releases the pool
func (d *Dispatcher) Shutdown(timeout time.Duration) {
	d.logger.Info("Shutting down notification dispatcher", "running_workers", d.pool.Running())
	if err := d.pool.ReleaseTimeout(timeout); err != nil {
		d.logger.Warn("Notification dispatcher did not drain in time", "error", err)
	}
}

// Running returns the number of running workers in the pool.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (d *Dispatcher) Capacity() int {
	return d.pool.Cap()
}
