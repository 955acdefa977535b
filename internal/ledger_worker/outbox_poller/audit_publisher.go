package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/outbox"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// ErrUndecodablePayload marks outbox messages that can never be published
var ErrUndecodablePayload = errors.New("outbox payload is not an audit event")

// AuditPublisher moves one outbox message into the audit store
type AuditPublisher interface {
	PublishToAudit(ctx context.Context, message *outbox.Message) error
}

// AuditPublisherImpl implements AuditPublisher on top of the Mongo audit store
type AuditPublisherImpl struct {
	outboxRepo outbox.Repository
	auditRepo  audit.Repository
	logger     *slog.Logger
}

func NewAuditPublisher(
	outboxRepo outbox.Repository,
	auditRepo audit.Repository,
	logger *slog.Logger,
) AuditPublisher {
	return &AuditPublisherImpl{
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// PublishToAudit writes the event and marks the message processed. An event already
// in the audit store counts as published, so a crash between the two steps is safe.
func (p *AuditPublisherImpl) PublishToAudit(ctx context.Context, message *outbox.Message) error {
	event, err := message.AuditEvent()
	if err != nil {
		p.logger.Error("Failed to decode audit event from outbox payload",
			"outbox_id", message.ID, "event_id", message.EventID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark undecodable outbox message", "outbox_id", message.ID, "error", updateErr)
		}
		return fmt.Errorf("%w: outbox %d: %v", ErrUndecodablePayload, message.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	err = p.auditRepo.Create(ctx, event)
	switch {
	case errors.Is(err, audit.ErrDuplicateEvent{}):
		logger.Info("Audit event already recorded", "event_id", event.ID.String())
	case err != nil:
		logger.Error("Failed to write audit event", "event_id", event.ID.String(), "error", err)
		return fmt.Errorf("failed to write audit event %s: %w", event.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to mark outbox message as PROCESSED", "outbox_id", message.ID, "error", err)
		return fmt.Errorf("audit write for %s OK, but failed to mark outbox %d as PROCESSED: %w", event.ID, message.ID, err)
	}

	logger.Debug("Published audit event",
		"outbox_id", message.ID,
		"event_id", event.ID.String(),
		"action", string(event.Action),
	)
	return nil
}
