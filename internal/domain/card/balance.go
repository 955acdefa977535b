package card

import (
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Balance tracks a card's funds across three buckets. A status change of one
// of the card's transactions moves money between buckets without changing Total.
type Balance struct {
	ID        uuid.UUID `json:"id"`
	CardID    uuid.UUID `json:"card_id"`
	Available int64     `json:"available_balance"`
	Reserved  int64     `json:"reserved_balance"`
	Used      int64     `json:"used_balance"`
	Currency  string    `json:"currency"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBalance creates the one balance a card owns
func NewBalance(cardID uuid.UUID, initialAmount int64, currency string) (*Balance, error) {
	if initialAmount < 0 {
		return nil, shared.ErrInvalidAmount
	}
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, shared.ErrInvalidCurrency
	}
	now := time.Now().UTC()
	return &Balance{
		ID:        uuid.New(),
		CardID:    cardID,
		Available: initialAmount,
		Currency:  currency,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Total is the sum of all buckets
func (b *Balance) Total() int64 {
	return b.Available + b.Reserved + b.Used
}

// Fund adds to the available bucket only
func (b *Balance) Fund(amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	b.Available += amount
	b.touch()
	return nil
}

// Apply moves amount between buckets for a transaction going from one status to
// another. from is empty for a transaction that is being created. The move keys
// off from, so reversing a captured transaction releases from used, not reserved.
// Nothing changes if any bucket would go negative.
func (b *Balance) Apply(amount int64, from, to shared.TransactionStatus) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}

	available, reserved, used := b.Available, b.Reserved, b.Used
	switch {
	case from == "" && to == shared.TransactionStatusPending:
		available -= amount
		reserved += amount
	case from == shared.TransactionStatusPending && to == shared.TransactionStatusCompleted:
		reserved -= amount
		used += amount
	case from == shared.TransactionStatusPending && to == shared.TransactionStatusReversed:
		reserved -= amount
		available += amount
	case (from == shared.TransactionStatusCompleted || from == shared.TransactionStatusDisputed) &&
		to == shared.TransactionStatusReversed:
		used -= amount
		available += amount
	case to == shared.TransactionStatusDisputed &&
		(from == shared.TransactionStatusCompleted || from == shared.TransactionStatusReversed):
		return nil
	default:
		return ErrInvalidTransition{From: from, To: to}
	}

	if available < 0 || reserved < 0 || used < 0 {
		return ErrInsufficientHold{
			CardID:    b.CardID,
			Amount:    amount,
			From:      from,
			To:        to,
			Available: b.Available,
			Reserved:  b.Reserved,
			Used:      b.Used,
		}
	}

	b.Available, b.Reserved, b.Used = available, reserved, used
	b.touch()
	return nil
}

// Rebuild resets the reserved and used buckets from transaction log sums
func (b *Balance) Rebuild(reserved, used int64) {
	b.Reserved = reserved
	b.Used = used
	b.touch()
}

func (b *Balance) touch() {
	b.UpdatedAt = time.Now().UTC()
	b.Version++
}
