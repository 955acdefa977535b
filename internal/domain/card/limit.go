package card

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// DefaultThreshold is the percentage of a limit at which a warning is raised
const DefaultThreshold = 80

// LimitType defines the window a limit applies to
type LimitType string

const (
	LimitPerTransaction LimitType = "PER_TRANSACTION"
	LimitDaily          LimitType = "DAILY"
	LimitMonthly        LimitType = "MONTHLY"
)

// IsValid reports whether t is a known limit type
func (t LimitType) IsValid() bool {
	switch t {
	case LimitPerTransaction, LimitDaily, LimitMonthly:
		return true
	}
	return false
}

// Limit caps spending on a card
type Limit struct {
	ID        uuid.UUID `json:"id"`
	CardID    uuid.UUID `json:"card_id"`
	Type      LimitType `json:"limit_type"`
	Amount    int64     `json:"amount"`
	Threshold int       `json:"threshold"` // Percent of Amount
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLimit creates an active limit; a zero threshold takes the default
func NewLimit(cardID uuid.UUID, t LimitType, amount int64, threshold int) (*Limit, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown limit type %q", t)
	}
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	now := time.Now().UTC()
	return &Limit{
		ID:        uuid.New(),
		CardID:    cardID,
		Type:      t,
		Amount:    amount,
		Threshold: threshold,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// WindowStart returns the start of the limit's spending window containing now
func (l *Limit) WindowStart(now time.Time) time.Time {
	now = now.UTC()
	switch l.Type {
	case LimitDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case LimitMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return now
	}
}

// LimitWarning reports spend crossing a limit's threshold
type LimitWarning struct {
	Type      LimitType `json:"limit_type"`
	Limit     int64     `json:"limit"`
	Projected int64     `json:"projected"`
	Threshold int       `json:"threshold"`
}

// SpendLookup returns the spend already counted against a card since a point in time
type SpendLookup func(since time.Time) (int64, error)

// CheckLimits validates amount against the active limits. It fails on the first
// breached limit and otherwise returns any threshold warnings.
func CheckLimits(limits []*Limit, amount int64, now time.Time, spent SpendLookup) ([]LimitWarning, error) {
	var warnings []LimitWarning
	for _, l := range limits {
		if !l.IsActive {
			continue
		}
		projected := amount
		if l.Type != LimitPerTransaction {
			prior, err := spent(l.WindowStart(now))
			if err != nil {
				return nil, err
			}
			projected += prior
		}
		if projected > l.Amount {
			return nil, ErrLimitExceeded{Type: l.Type, Limit: l.Amount, Attempted: projected}
		}
		if projected*100 >= l.Amount*int64(l.Threshold) {
			warnings = append(warnings, LimitWarning{
				Type:      l.Type,
				Limit:     l.Amount,
				Projected: projected,
				Threshold: l.Threshold,
			})
		}
	}
	return warnings, nil
}
