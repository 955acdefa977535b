package card

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

var ErrNotDisputable = errors.New("card transaction cannot be disputed")

// Transaction is a card spend moving through PENDING, COMPLETED, REVERSED and DISPUTED
type Transaction struct {
	ID             uuid.UUID                `json:"id"`
	CardID         uuid.UUID                `json:"card_id"`
	Amount         int64                    `json:"amount"`
	Currency       string                   `json:"currency"`
	Merchant       string                   `json:"merchant"`
	MCC            string                   `json:"mcc,omitempty"`
	ReferenceID    string                   `json:"reference_id,omitempty"`
	International  bool                     `json:"international"`
	Status         shared.TransactionStatus `json:"status"`
	CanBeDisputed  bool                     `json:"can_be_disputed"`
	DisputeReason  string                   `json:"dispute_reason,omitempty"`
	ReversalReason string                   `json:"reversal_reason,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	ReversedAt     *time.Time               `json:"reversed_at,omitempty"`
	DisputedAt     *time.Time               `json:"disputed_at,omitempty"`
}

// NewTransaction prepares a card spend; it becomes PENDING once held against the card balance
func NewTransaction(cardID uuid.UUID, amount int64, currency, merchant, mcc, referenceID string, international bool) (*Transaction, error) {
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &Transaction{
		ID:            uuid.New(),
		CardID:        cardID,
		Amount:        amount,
		Currency:      currency,
		Merchant:      merchant,
		MCC:           mcc,
		ReferenceID:   referenceID,
		International: international,
		CanBeDisputed: true,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Reference returns the external reference, falling back to the transaction id
func (t *Transaction) Reference() string {
	if t.ReferenceID != "" {
		return t.ReferenceID
	}
	return t.ID.String()
}

// CanTransition reports whether the state machine allows from -> to for t
func (t *Transaction) CanTransition(to shared.TransactionStatus) bool {
	switch t.Status {
	case "":
		return to == shared.TransactionStatusPending
	case shared.TransactionStatusPending:
		return to == shared.TransactionStatusCompleted || to == shared.TransactionStatusReversed
	case shared.TransactionStatusCompleted:
		return to == shared.TransactionStatusReversed || to == shared.TransactionStatusDisputed
	case shared.TransactionStatusDisputed:
		// A dispute raised after a reversal is terminal.
		return to == shared.TransactionStatusReversed && t.ReversedAt == nil
	default:
		return false
	}
}

// TransitionTo moves t to the target status, returning the status it left
func (t *Transaction) TransitionTo(to shared.TransactionStatus, reason string) (shared.TransactionStatus, error) {
	from := t.Status
	if to == shared.TransactionStatusDisputed {
		return from, t.Dispute(reason)
	}
	if !t.CanTransition(to) {
		return from, ErrInvalidTransition{From: from, To: to}
	}
	now := time.Now().UTC()
	t.Status = to
	switch to {
	case shared.TransactionStatusCompleted:
		t.CompletedAt = &now
	case shared.TransactionStatusReversed:
		t.ReversalReason = reason
		t.ReversedAt = &now
	}
	return from, nil
}

// Dispute records a dispute reason. Only COMPLETED or REVERSED transactions that
// have not been disputed before qualify. It never moves money.
func (t *Transaction) Dispute(reason string) error {
	if !t.CanBeDisputed {
		return ErrNotDisputable
	}
	if t.Status != shared.TransactionStatusCompleted && t.Status != shared.TransactionStatusReversed {
		return ErrNotDisputable
	}
	now := time.Now().UTC()
	t.Status = shared.TransactionStatusDisputed
	t.DisputeReason = reason
	t.DisputedAt = &now
	t.CanBeDisputed = false
	return nil
}
