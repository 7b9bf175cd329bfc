package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes deposits from withdrawals.
type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "DEPOSIT"
	TransactionWithdrawal TransactionKind = "WITHDRAWAL"
)

// PettyCashLedger is a department cash book subject to two-stage approval.
type PettyCashLedger struct {
	ID              string          `db:"id" json:"id"`
	DepartmentID    string          `db:"department_id" json:"department_id"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	Title           string          `db:"title" json:"title"`
	StartingBalance decimal.Decimal `db:"starting_balance" json:"starting_balance"`
	ClosingBalance  decimal.Decimal `db:"closing_balance" json:"closing_balance"`
	Approvable
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PettyCashTransaction is one ledger line. Balance is the running balance as
// of this line, in insertion order (seq breaks timestamp ties).
type PettyCashTransaction struct {
	ID          string          `db:"id" json:"id"`
	LedgerID    string          `db:"ledger_id" json:"ledger_id"`
	Kind        TransactionKind `db:"kind" json:"kind"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	Description string          `db:"description" json:"description"`
	Seq         int64           `db:"seq" json:"seq"`
	CreatedBy   string          `db:"created_by" json:"created_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// LedgerFilter constrains ledger listing.
type LedgerFilter struct {
	DepartmentID string
	Status       ApprovalStatus
	Page         int
	PageSize     int
}
