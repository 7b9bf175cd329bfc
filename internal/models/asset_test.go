package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDepreciationAtAcquisition(t *testing.T) {
	acquired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := &Asset{
		PurchasePrice:    decimal.NewFromInt(1000),
		DepreciationRate: decimal.NewFromFloat(0.05),
		DateAcquired:     acquired,
	}

	accumulated, bookValue := asset.DepreciationAt(acquired)
	assert.True(t, accumulated.IsZero())
	assert.True(t, bookValue.Equal(decimal.NewFromInt(1000)))
}

func TestDepreciationAfterTwoYears(t *testing.T) {
	acquired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := &Asset{
		PurchasePrice:    decimal.NewFromInt(1000),
		DepreciationRate: decimal.NewFromFloat(0.05),
		DateAcquired:     acquired,
	}

	// Two 365.25-day years: accumulated = 2 * 1000 * 0.05 = 100.
	twoYears := acquired.Add(time.Duration(2 * 365.25 * 24 * float64(time.Hour)))
	accumulated, bookValue := asset.DepreciationAt(twoYears)

	assert.InDelta(t, 100, accumulated.InexactFloat64(), 0.01)
	assert.InDelta(t, 900, bookValue.InexactFloat64(), 0.01)
}

func TestDepreciationClampedToPurchasePrice(t *testing.T) {
	acquired := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := &Asset{
		PurchasePrice:    decimal.NewFromInt(500),
		DepreciationRate: decimal.NewFromFloat(0.2),
		DateAcquired:     acquired,
	}

	// Far past the useful life: book value bottoms out at zero.
	accumulated, bookValue := asset.DepreciationAt(acquired.AddDate(50, 0, 0))
	assert.True(t, accumulated.Equal(decimal.NewFromInt(500)))
	assert.True(t, bookValue.IsZero())
}
