package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/outbox"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// EventRecorder queues audit events in the outbox inside the caller's transaction
type EventRecorder struct {
	db         TxRunner
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewEventRecorder(db TxRunner, outboxRepo outbox.Repository, logger *slog.Logger) *EventRecorder {
	return &EventRecorder{
		db:         db,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Record appends event to the outbox using tx
func (r *EventRecorder) Record(ctx context.Context, tx pgx.Tx, event *audit.Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = shared.CorrelationIDFromContext(ctx)
	}

	msg, err := outbox.NewMessage(event)
	if err != nil {
		r.logger.Error("Failed to create outbox message (marshal payload)", "event_id", event.ID.String(), "error", err)
		return fmt.Errorf("failed to create outbox payload for event %s: %w", event.ID, err)
	}

	if err := r.outboxRepo.WithTx(tx).Create(ctx, msg); err != nil {
		r.logger.Error("Failed to create outbox message",
			"event_id", event.ID.String(),
			"action", string(event.Action),
			"error", err,
		)
		return shared.PersistenceError("queue audit event", err)
	}
	return nil
}

// RecordAlone appends event in a transaction of its own. It is used for
// failures whose own transaction was rolled back.
func (r *EventRecorder) RecordAlone(ctx context.Context, event *audit.Event) error {
	return r.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return r.Record(ctx, tx, event)
	})
}
