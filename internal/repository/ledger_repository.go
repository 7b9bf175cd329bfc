package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// LedgerRepository persists petty-cash ledgers and their transaction lines.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = `id, department_id, created_by, title, starting_balance, closing_balance,
dept_head_status, admin_status, approval_status, locked, version, created_at, updated_at`

// Create inserts a new ledger in its initial approval state.
func (r *LedgerRepository) Create(ctx context.Context, ledger *models.PettyCashLedger) error {
	if ledger.ID == "" {
		ledger.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ledger.CreatedAt.IsZero() {
		ledger.CreatedAt = now
	}
	ledger.UpdatedAt = now
	const query = `INSERT INTO petty_cash_ledgers (id, department_id, created_by, title, starting_balance, closing_balance,
dept_head_status, admin_status, approval_status, locked, version, created_at, updated_at)
VALUES (:id, :department_id, :created_by, :title, :starting_balance, :closing_balance,
:dept_head_status, :admin_status, :approval_status, :locked, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ledger); err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	return nil
}

// GetByID fetches a ledger by identifier.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*models.PettyCashLedger, error) {
	query := r.db.Rebind(`SELECT ` + ledgerColumns + ` FROM petty_cash_ledgers WHERE id = ?`)
	var ledger models.PettyCashLedger
	if err := r.db.GetContext(ctx, &ledger, query, id); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// List returns ledgers matching the filter, newest first, with total count.
func (r *LedgerRepository) List(ctx context.Context, filter models.LedgerFilter) ([]models.PettyCashLedger, int, error) {
	base := `FROM petty_cash_ledgers WHERE 1=1`
	var args []interface{}
	if filter.DepartmentID != "" {
		base += ` AND department_id = ?`
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		base += ` AND approval_status = ?`
		args = append(args, filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := r.db.Rebind(fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", ledgerColumns, base, pageSize, offset))
	var ledgers []models.PettyCashLedger
	if err := r.db.SelectContext(ctx, &ledgers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledgers: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) " + base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ledgers: %w", err)
	}
	return ledgers, total, nil
}

// UpdateApproval commits a decision with an optimistic version check. A
// zero rows-affected result means the read was stale or the record already
// terminal; callers translate sql.ErrNoRows into a conflict.
func (r *LedgerRepository) UpdateApproval(ctx context.Context, ledger *models.PettyCashLedger, expectedVersion int64) error {
	ledger.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE petty_cash_ledgers
SET dept_head_status = ?, admin_status = ?, approval_status = ?, locked = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?`)
	res, err := r.db.ExecContext(ctx, query,
		ledger.DeptHeadStatus, ledger.AdminStatus, ledger.ApprovalStatus, ledger.Locked,
		expectedVersion+1, ledger.UpdatedAt, ledger.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update ledger approval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check ledger approval rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	ledger.Version = expectedVersion + 1
	return nil
}

// NextSeq returns the next transaction sequence number for a ledger.
func (r *LedgerRepository) NextSeq(ctx context.Context, ledgerID string) (int64, error) {
	query := r.db.Rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM petty_cash_transactions WHERE ledger_id = ?`)
	var seq int64
	if err := r.db.GetContext(ctx, &seq, query, ledgerID); err != nil {
		return 0, fmt.Errorf("next transaction seq: %w", err)
	}
	return seq, nil
}

// CreateTransaction inserts a line and persists the ledger's recomputed
// closing balance in the same transaction.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, line *models.PettyCashTransaction, ledger *models.PettyCashLedger) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO petty_cash_transactions (id, ledger_id, kind, amount, balance, description, seq, created_by, created_at)
VALUES (:id, :ledger_id, :kind, :amount, :balance, :description, :seq, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, line); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	update := r.db.Rebind(`UPDATE petty_cash_ledgers SET closing_balance = ?, updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, update, ledger.ClosingBalance, time.Now().UTC(), ledger.ID); err != nil {
		return fmt.Errorf("update closing balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction tx: %w", err)
	}
	return nil
}

// ListTransactions returns ledger lines in insertion order.
func (r *LedgerRepository) ListTransactions(ctx context.Context, ledgerID string) ([]models.PettyCashTransaction, error) {
	query := r.db.Rebind(`SELECT id, ledger_id, kind, amount, balance, description, seq, created_by, created_at
FROM petty_cash_transactions WHERE ledger_id = ? ORDER BY seq ASC`)
	var lines []models.PettyCashTransaction
	if err := r.db.SelectContext(ctx, &lines, query, ledgerID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return lines, nil
}
