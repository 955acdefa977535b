package card

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimits(t *testing.T) {
	cardID := uuid.New()
	now := time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC)

	perTxn, err := NewLimit(cardID, LimitPerTransaction, 50000, 0)
	require.NoError(t, err)
	daily, err := NewLimit(cardID, LimitDaily, 100000, 90)
	require.NoError(t, err)
	monthly, err := NewLimit(cardID, LimitMonthly, 1000000, 0)
	require.NoError(t, err)
	limits := []*Limit{perTxn, daily, monthly}

	spent := func(daySpend, monthSpend int64) SpendLookup {
		return func(since time.Time) (int64, error) {
			if since.Day() == 1 {
				return monthSpend, nil
			}
			assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), since)
			return daySpend, nil
		}
	}

	t.Run("WithinLimits", func(t *testing.T) {
		warnings, err := CheckLimits(limits, 10000, now, spent(0, 0))
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("PerTransactionBreach", func(t *testing.T) {
		_, err := CheckLimits(limits, 50001, now, spent(0, 0))
		var exceeded ErrLimitExceeded
		require.True(t, errors.As(err, &exceeded))
		assert.Equal(t, LimitPerTransaction, exceeded.Type)
	})

	t.Run("DailyBreachCountsPriorSpend", func(t *testing.T) {
		_, err := CheckLimits(limits, 30000, now, spent(80000, 80000))
		var exceeded ErrLimitExceeded
		require.True(t, errors.As(err, &exceeded))
		assert.Equal(t, LimitDaily, exceeded.Type)
		assert.Equal(t, int64(110000), exceeded.Attempted)
	})

	t.Run("ThresholdWarnings", func(t *testing.T) {
		warnings, err := CheckLimits(limits, 45000, now, spent(50000, 760000))
		require.NoError(t, err)
		require.Len(t, warnings, 3)
		assert.Equal(t, LimitPerTransaction, warnings[0].Type)
		assert.Equal(t, int64(95000), warnings[1].Projected)
		assert.Equal(t, 80, warnings[2].Threshold)
	})

	t.Run("InactiveLimitIgnored", func(t *testing.T) {
		off := *perTxn
		off.IsActive = false
		_, err := CheckLimits([]*Limit{&off}, 999999, now, spent(0, 0))
		assert.NoError(t, err)
	})

	t.Run("LookupFailure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := CheckLimits([]*Limit{daily}, 1, now, func(time.Time) (int64, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestNewLimit(t *testing.T) {
	_, err := NewLimit(uuid.New(), LimitType("WEEKLY"), 10, 0)
	assert.Error(t, err)

	l, err := NewLimit(uuid.New(), LimitDaily, 10, 150)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, l.Threshold)
	assert.True(t, l.IsActive)
}
