package card

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtupay-ledger/internal/domain/shared"
)

func TestBalance_Apply(t *testing.T) {
	const (
		pending   = shared.TransactionStatusPending
		completed = shared.TransactionStatusCompleted
		reversed  = shared.TransactionStatusReversed
		disputed  = shared.TransactionStatusDisputed
	)

	tests := []struct {
		name                      string
		start                     [3]int64 // available, reserved, used
		from, to                  shared.TransactionStatus
		wantAvail, wantRes, wantU int64
	}{
		{"Hold", [3]int64{100, 0, 0}, "", pending, 70, 30, 0},
		{"Capture", [3]int64{70, 30, 0}, pending, completed, 70, 0, 30},
		{"ReleaseHold", [3]int64{70, 30, 0}, pending, reversed, 100, 0, 0},
		{"RefundCapture", [3]int64{70, 0, 30}, completed, reversed, 100, 0, 0},
		{"RefundDisputed", [3]int64{70, 0, 30}, disputed, reversed, 100, 0, 0},
		{"DisputeCapturedIsNoop", [3]int64{70, 0, 30}, completed, disputed, 70, 0, 30},
		{"DisputeReversedIsNoop", [3]int64{100, 0, 0}, reversed, disputed, 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Balance{CardID: uuid.New(), Available: tt.start[0], Reserved: tt.start[1], Used: tt.start[2]}
			total := b.Total()

			require.NoError(t, b.Apply(30, tt.from, tt.to))

			assert.Equal(t, tt.wantAvail, b.Available)
			assert.Equal(t, tt.wantRes, b.Reserved)
			assert.Equal(t, tt.wantU, b.Used)
			assert.Equal(t, total, b.Total())
		})
	}
}

func TestBalance_ApplyRejects(t *testing.T) {
	t.Run("InvalidTransition", func(t *testing.T) {
		b := &Balance{Available: 100}
		err := b.Apply(10, shared.TransactionStatusReversed, shared.TransactionStatusCompleted)

		var invalid ErrInvalidTransition
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, shared.TransactionStatusReversed, invalid.From)
		assert.Equal(t, int64(100), b.Available)
	})

	t.Run("NegativeBucketMutatesNothing", func(t *testing.T) {
		b := &Balance{Available: 20, Version: 3}
		err := b.Apply(30, "", shared.TransactionStatusPending)

		assert.ErrorIs(t, err, ErrInsufficientHold{})
		assert.Equal(t, int64(20), b.Available)
		assert.Zero(t, b.Reserved)
		assert.Equal(t, 3, b.Version)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		b := &Balance{Available: 20}
		assert.ErrorIs(t, b.Apply(0, "", shared.TransactionStatusPending), shared.ErrInvalidAmount)
	})
}

func TestBalance_Fund(t *testing.T) {
	b, err := NewBalance(uuid.New(), 0, "")
	require.NoError(t, err)

	require.NoError(t, b.Fund(100000))
	assert.Equal(t, int64(100000), b.Available)
	assert.ErrorIs(t, b.Fund(-1), shared.ErrInvalidAmount)

	_, err = NewBalance(uuid.New(), -1, "")
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
}
