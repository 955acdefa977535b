package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/virtupay-ledger/internal/domain/notification"
)

// IntentPublisher writes notification intents to the notification topic
type IntentPublisher interface {
	PublishIntent(ctx context.Context, intent notification.Intent) error
	Close() error
}

// DeadLetterPublisher parks intents the webhook kept refusing, with the refusal reason
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the subset of kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ IntentPublisher     = (*NotificationProducer)(nil)
	_ DeadLetterPublisher = (*DLQProducer)(nil)
	_ KafkaWriter         = (*kafka.Writer)(nil)
)
