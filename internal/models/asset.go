package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a registered fixed asset subject to two-stage approval.
type Asset struct {
	ID               string          `db:"id" json:"id"`
	DepartmentID     string          `db:"department_id" json:"department_id"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	Name             string          `db:"name" json:"name"`
	PurchasePrice    decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	DepreciationRate decimal.Decimal `db:"depreciation_rate" json:"depreciation_rate"`
	DateAcquired     time.Time       `db:"date_acquired" json:"date_acquired"`
	Approvable
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AssetDepreciation is a point-in-time depreciation snapshot row.
type AssetDepreciation struct {
	ID           string          `db:"id" json:"id"`
	AssetID      string          `db:"asset_id" json:"asset_id"`
	SnapshotDate time.Time       `db:"snapshot_date" json:"snapshot_date"`
	Accumulated  decimal.Decimal `db:"accumulated" json:"accumulated"`
	BookValue    decimal.Decimal `db:"book_value" json:"book_value"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// AssetFilter constrains asset listing.
type AssetFilter struct {
	DepartmentID string
	Status       ApprovalStatus
	Page         int
	PageSize     int
}

const hoursPerYear = 24 * 365.25

// DepreciationAt computes accumulated depreciation and book value at t using
// a fractional year count. Accumulated never exceeds the purchase price, so
// book value stays non-negative.
func (a *Asset) DepreciationAt(t time.Time) (accumulated, bookValue decimal.Decimal) {
	if !t.After(a.DateAcquired) {
		return decimal.Zero, a.PurchasePrice
	}
	years := decimal.NewFromFloat(t.Sub(a.DateAcquired).Hours() / hoursPerYear)
	annual := a.PurchasePrice.Mul(a.DepreciationRate)
	accumulated = years.Mul(annual)
	if accumulated.GreaterThan(a.PurchasePrice) {
		accumulated = a.PurchasePrice
	}
	return accumulated, a.PurchasePrice.Sub(accumulated)
}
