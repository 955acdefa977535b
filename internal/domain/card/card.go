// Package card models virtual cards, their balances, transaction log and spending limits.
package card

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

var (
	ErrCardNotActive    = errors.New("card is not active")
	ErrCardNotFrozen    = errors.New("card is not frozen")
	ErrCardCancelled    = errors.New("card is cancelled")
	ErrMerchantBlocked  = errors.New("merchant category is blocked for this card")
	ErrInternationalOff = errors.New("international transactions are disabled for this card")
)

// Status defines the lifecycle of a card
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFrozen    Status = "FROZEN"
	StatusCancelled Status = "CANCELLED"
)

// Card is a virtual card issued to a membership of an organization
type Card struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     uuid.UUID  `json:"organization_id"`
	OwnerMembershipID  uuid.UUID  `json:"owner_membership_id"`
	CardNumber         string     `json:"-"`
	Status             Status     `json:"status"`
	AllowInternational bool       `json:"allow_international"`
	BlockedMCCs        []string   `json:"blocked_mccs,omitempty"`
	FreezeReason       string     `json:"freeze_reason,omitempty"`
	FrozenAt           *time.Time `json:"frozen_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	Currency           string     `json:"currency"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewCard issues a card with a fresh card number
func NewCard(organizationID, ownerMembershipID uuid.UUID, currency string) (*Card, error) {
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, shared.ErrInvalidCurrency
	}
	number, err := GenerateNumber()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Card{
		ID:                uuid.New(),
		OrganizationID:    organizationID,
		OwnerMembershipID: ownerMembershipID,
		CardNumber:        number,
		Status:            StatusActive,
		Currency:          currency,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsActive reports whether the card may transact
func (c *Card) IsActive() bool {
	return c.Status == StatusActive
}

// Freeze blocks the card from transacting
func (c *Card) Freeze(reason string) error {
	if c.Status != StatusActive {
		return ErrCardNotActive
	}
	now := time.Now().UTC()
	c.Status = StatusFrozen
	c.FreezeReason = reason
	c.FrozenAt = &now
	c.touch()
	return nil
}

// Unfreeze returns a frozen card to ACTIVE
func (c *Card) Unfreeze() error {
	if c.Status != StatusFrozen {
		return ErrCardNotFrozen
	}
	c.Status = StatusActive
	c.FreezeReason = ""
	c.FrozenAt = nil
	c.touch()
	return nil
}

// Cancel permanently retires the card
func (c *Card) Cancel() error {
	if c.Status == StatusCancelled {
		return ErrCardCancelled
	}
	now := time.Now().UTC()
	c.Status = StatusCancelled
	c.CancelledAt = &now
	c.touch()
	return nil
}

// SetInternational toggles cross-border usage
func (c *Card) SetInternational(enabled bool) error {
	if c.Status == StatusCancelled {
		return ErrCardCancelled
	}
	c.AllowInternational = enabled
	c.touch()
	return nil
}

// SetBlockedMCCs replaces the blocked merchant category codes
func (c *Card) SetBlockedMCCs(mccs []string) error {
	if c.Status == StatusCancelled {
		return ErrCardCancelled
	}
	blocked := slices.Clone(mccs)
	slices.Sort(blocked)
	c.BlockedMCCs = slices.Compact(blocked)
	c.touch()
	return nil
}

// TouchLimits versions the card when its limits are replaced
func (c *Card) TouchLimits() error {
	if c.Status == StatusCancelled {
		return ErrCardCancelled
	}
	c.touch()
	return nil
}

// Authorize checks card-level rules for a prospective transaction
func (c *Card) Authorize(mcc string, international bool) error {
	if !c.IsActive() {
		return ErrCardNotActive
	}
	if mcc != "" && slices.Contains(c.BlockedMCCs, mcc) {
		return ErrMerchantBlocked
	}
	if international && !c.AllowInternational {
		return ErrInternationalOff
	}
	return nil
}

// MaskedNumber hides all but the last four digits
func (c *Card) MaskedNumber() string {
	return MaskNumber(c.CardNumber)
}

func (c *Card) touch() {
	c.UpdatedAt = time.Now().UTC()
	c.Version++
}
