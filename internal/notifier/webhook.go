package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/virtupay-ledger/internal/config"
	"github.com/virtupay-ledger/internal/domain/notification"
)

// ErrRejected marks a webhook response that retrying will not fix
var ErrRejected = errors.New("webhook rejected notification")

// WebhookDeliverer POSTs intents as JSON to a single configured endpoint
type WebhookDeliverer struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

func NewWebhookDeliverer(cfg *config.NotificationConfig, logger *slog.Logger) *WebhookDeliverer {
	return &WebhookDeliverer{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.WebhookURL,
		logger: logger,
	}
}

// Deliver sends one intent. Without a configured URL the intent is only logged.
func (w *WebhookDeliverer) Deliver(ctx context.Context, intent notification.Intent) error {
	if w.url == "" {
		w.logger.Info("Notification",
			"intent_id", intent.ID.String(),
			"kind", string(intent.Kind),
			"organization_id", intent.OrganizationID.String(),
			"message", intent.Message,
		)
		return nil
	}

	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal intent %s: %v", ErrRejected, intent.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", intent.ID.String())
	req.Header.Set("X-Notification-Kind", string(intent.Kind))
	req.Header.Set("X-Sent-At", time.Now().UTC().Format(time.RFC3339))
	if intent.CorrelationID != "" {
		req.Header.Set("X-Correlation-ID", intent.CorrelationID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}
