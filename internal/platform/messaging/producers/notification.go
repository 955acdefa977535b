package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/virtupay-ledger/internal/config"
	"github.com/virtupay-ledger/internal/domain/notification"
)

const headerIntentKind = "intent-kind"

// NotificationProducer publishes notification intents keyed by card, so one card's
// intents land on one partition in order.
type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewNotificationProducer(logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	if err := ensureTopic(cfg, cfg.NotificationTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &NotificationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

func (p *NotificationProducer) PublishIntent(ctx context.Context, intent notification.Intent) error {
	value, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal notification intent %s: %w", intent.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(intent.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerIntentKind, Value: []byte(intent.Kind)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification intent",
			"topic", p.topic,
			"intent_id", intent.ID.String(),
			"kind", string(intent.Kind),
			"error", err,
		)
		return fmt.Errorf("failed to publish notification intent to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification intent",
		"topic", p.topic,
		"intent_id", intent.ID.String(),
		"kind", string(intent.Kind),
	)
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification writer for topic %s: %w", p.topic, err)
	}
	return nil
}
