// Package outbox_poller drains the transactional outbox into the audit store.
package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/virtupay-ledger/internal/config"
	"github.com/virtupay-ledger/internal/domain/outbox"
	"github.com/virtupay-ledger/internal/domain/shared"
)

const purgeInterval = time.Hour

// Poller processes pending outbox messages and purges published ones past retention
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        AuditPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	retention        time.Duration
	now              func() time.Time
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher AuditPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		retention:        cfg.Retention,
		now:              time.Now,
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
		"retention", p.retention.String(),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	purgeTicker := time.NewTicker(purgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping")
			return
		case <-ticker.C:
			if _, err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during outbox batch", "error", err)
			}
		case <-purgeTicker.C:
			if _, err := p.purgeProcessed(ctx); err != nil {
				p.logger.Error("Error purging processed outbox messages", "error", err)
			}
		}
	}
}

// purgeProcessed drops published messages older than the retention window
func (p *Poller) purgeProcessed(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	purged, err := p.outboxRepo.PurgeProcessed(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		p.logger.Info("Purged processed outbox messages", "count", purged)
	}
	return purged, nil
}

// processPendingMessages publishes one batch and reports how many messages made it
func (p *Poller) processPendingMessages(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	published := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}

		err := p.publisher.PublishToAudit(ctx, msg)
		if err == nil {
			published++
			continue
		}
		if errors.Is(err, ErrUndecodablePayload) {
			continue
		}

		p.logger.Error("Failed to publish outbox message",
			"outbox_id", msg.ID, "event_id", msg.EventID.String(), "attempts", msg.Attempts, "error", err,
		)

		if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
			p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
			continue
		}

		if msg.Attempts+1 >= p.maxRetryAttempts {
			p.logger.Warn("Max retry attempts reached, marking outbox message FAILED_TO_PUBLISH",
				"outbox_id", msg.ID, "event_id", msg.EventID.String(), "attempts", msg.Attempts+1,
			)
			if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
				p.logger.Error("Failed to mark outbox message FAILED_TO_PUBLISH", "outbox_id", msg.ID, "error", errUpdate)
			}
		}
	}
	return published, nil
}
