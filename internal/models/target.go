package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TargetStatus captures target lifecycle.
type TargetStatus string

const (
	TargetActive TargetStatus = "ACTIVE"
	TargetClosed TargetStatus = "CLOSED"
)

// Target is a user's goal amount.
type Target struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Title     string          `db:"title" json:"title"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    TargetStatus    `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TargetProgress ledgers one contribution toward a target. ReportID is
// unique so a source report contributes at most once.
type TargetProgress struct {
	ID        string          `db:"id" json:"id"`
	TargetID  string          `db:"target_id" json:"target_id"`
	ReportID  string          `db:"report_id" json:"report_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ProgressReport records work done for a client, optionally counted toward
// the author's active target.
type ProgressReport struct {
	ID        string          `db:"id" json:"id"`
	ClientID  string          `db:"client_id" json:"client_id"`
	AuthorID  string          `db:"author_id" json:"author_id"`
	Summary   string          `db:"summary" json:"summary"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
