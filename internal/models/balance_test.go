package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

func TestBalanceReserveAndRelease(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)

	require.NoError(t, b.Reserve(5))
	assert.Equal(t, 5, b.UsedDays)
	assert.Equal(t, 17, b.RemainingDays)

	require.NoError(t, b.Release(5))
	assert.Equal(t, 0, b.UsedDays)
	assert.Equal(t, 22, b.RemainingDays)
}

func TestBalanceReserveInsufficientLeavesLedgerUntouched(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)
	require.NoError(t, b.Reserve(20))

	err := b.Reserve(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientBalance))
	assert.Equal(t, 20, b.UsedDays)
	assert.Equal(t, 2, b.RemainingDays)
}

func TestBalanceReserveExactlyRemaining(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)
	require.NoError(t, b.Reserve(22))
	assert.Equal(t, 0, b.RemainingDays)
}

func TestBalanceReleaseBelowZeroIsCorruption(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)
	require.NoError(t, b.Reserve(2))

	err := b.Release(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrBalanceCorruption))
	assert.Equal(t, 2, b.UsedDays)
	assert.Equal(t, 20, b.RemainingDays)
}

func TestBalanceRejectsNonPositiveDays(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)
	assert.True(t, errors.Is(b.Reserve(0), appErrors.ErrValidation))
	assert.True(t, errors.Is(b.Release(-1), appErrors.ErrValidation))
}

func TestBalanceInvariantHoldsAcrossSequence(t *testing.T) {
	b := NewBalance("emp-1", 2026, 22)
	ops := []struct {
		reserve bool
		days    int
	}{{true, 3}, {true, 7}, {false, 3}, {true, 12}, {true, 5}, {false, 7}, {false, 12}}

	for _, op := range ops {
		if op.reserve {
			_ = b.Reserve(op.days)
		} else {
			_ = b.Release(op.days)
		}
		assert.Equal(t, b.EntitledDays-b.UsedDays, b.RemainingDays)
		assert.GreaterOrEqual(t, b.UsedDays, 0)
		assert.LessOrEqual(t, b.UsedDays, b.EntitledDays)
	}
}
