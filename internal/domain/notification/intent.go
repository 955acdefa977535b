// Package notification models fire-and-forget notification intents emitted by the ledger core.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an intent
type Kind string

const (
	KindLimitWarning    Kind = "limit-warning"
	KindApprovalRequest Kind = "approval-request"
	KindTransaction     Kind = "transaction"
	KindStatusChange    Kind = "status-change"
)

// Intent is a request to notify someone about a card event
type Intent struct {
	ID             uuid.UUID      `json:"id"`
	Kind           Kind           `json:"kind"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	CardID         *uuid.UUID     `json:"card_id,omitempty"`
	ApprovalID     *uuid.UUID     `json:"approval_id,omitempty"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewIntent builds an intent about a card; a nil card id leaves it organization-wide
func NewIntent(kind Kind, organizationID uuid.UUID, cardID *uuid.UUID, message string, data map[string]any) Intent {
	return Intent{
		ID:             uuid.New(),
		Kind:           kind,
		OrganizationID: organizationID,
		CardID:         cardID,
		Message:        message,
		Data:           data,
		CreatedAt:      time.Now().UTC(),
	}
}

// Key returns the partition key keeping one card's intents ordered
func (i Intent) Key() string {
	if i.CardID != nil {
		return i.CardID.String()
	}
	return i.OrganizationID.String()
}

// Sink accepts intents. Implementations must not block the caller on delivery
// and must not report delivery failures back.
type Sink interface {
	Notify(ctx context.Context, intent Intent)
}

// NopSink discards every intent
type NopSink struct{}

func (NopSink) Notify(context.Context, Intent) {}
