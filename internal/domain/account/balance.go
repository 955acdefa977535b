package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Scope identifies whose master balance is meant: the organization's, or a
// membership's personal balance inside it.
type Scope struct {
	OrganizationID uuid.UUID
	MembershipID   *uuid.UUID
}

// OrganizationScope is the organization-level balance
func OrganizationScope(organizationID uuid.UUID) Scope {
	return Scope{OrganizationID: organizationID}
}

// Balance is an organization's master balance. Available always equals
// TotalFunded - TotalWithdrawn.
type Balance struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	MembershipID   *uuid.UUID `json:"membership_id,omitempty"`
	Available      int64      `json:"available_balance"` // Stored in minor units
	TotalFunded    int64      `json:"total_funded"`
	TotalWithdrawn int64      `json:"total_withdrawn"`
	Currency       string     `json:"currency"`
	Version        int        `json:"version"` // For optimistic locking
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewBalance creates a zero balance for the scope
func NewBalance(scope Scope, currency string) (*Balance, error) {
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, shared.ErrInvalidCurrency
	}
	now := time.Now().UTC()
	return &Balance{
		ID:             uuid.New(),
		OrganizationID: scope.OrganizationID,
		MembershipID:   scope.MembershipID,
		Currency:       currency,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Scope returns the scope this balance belongs to
func (b *Balance) Scope() Scope {
	return Scope{OrganizationID: b.OrganizationID, MembershipID: b.MembershipID}
}

// Fund credits the balance
func (b *Balance) Fund(amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	b.Available += amount
	b.TotalFunded += amount
	b.touch()
	return nil
}

// Withdraw debits the balance, leaving it untouched when funds are short
func (b *Balance) Withdraw(amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if b.Available < amount {
		return shared.ErrInsufficientFunds{Required: amount, Available: b.Available}
	}
	b.Available -= amount
	b.TotalWithdrawn += amount
	b.touch()
	return nil
}

// Revert undoes the effect of a logged transaction on the running totals
func (b *Balance) Revert(t TransactionType, amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	switch t {
	case TransactionTypeFunding:
		if b.Available < amount {
			return shared.ErrInsufficientFunds{Required: amount, Available: b.Available}
		}
		b.Available -= amount
		b.TotalFunded -= amount
	case TransactionTypeWithdrawal:
		b.Available += amount
		b.TotalWithdrawn -= amount
	default:
		return ErrUnknownTransactionType{Type: t}
	}
	b.touch()
	return nil
}

// Consistent reports whether the running totals agree with the available balance
func (b *Balance) Consistent() bool {
	return b.Available >= 0 && b.Available == b.TotalFunded-b.TotalWithdrawn
}

func (b *Balance) touch() {
	b.UpdatedAt = time.Now().UTC()
	b.Version++
}
