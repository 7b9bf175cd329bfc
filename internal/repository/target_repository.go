package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// TargetRepository persists targets, their progress ledger, and the progress
// reports that feed it.
type TargetRepository struct {
	db *database.DB
}

// NewTargetRepository constructs the repository.
func NewTargetRepository(db *database.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

const targetColumns = `id, user_id, title, amount, status, created_at, updated_at`

// Create inserts a target.
func (r *TargetRepository) Create(ctx context.Context, t *models.Target) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TargetActive
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	const query = `INSERT INTO targets (id, user_id, title, amount, status, created_at, updated_at)
VALUES (:id, :user_id, :title, :amount, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	return nil
}

// GetByID returns a target by identifier.
func (r *TargetRepository) GetByID(ctx context.Context, id string) (*models.Target, error) {
	query := r.db.Rebind(`SELECT ` + targetColumns + ` FROM targets WHERE id = ?`)
	var t models.Target
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetActiveByUser returns the user's single ACTIVE target, or sql.ErrNoRows.
func (r *TargetRepository) GetActiveByUser(ctx context.Context, userID string) (*models.Target, error) {
	query := r.db.Rebind(`SELECT ` + targetColumns + ` FROM targets WHERE user_id = ? AND status = ? LIMIT 1`)
	var t models.Target
	if err := r.db.GetContext(ctx, &t, query, userID, models.TargetActive); err != nil {
		return nil, err
	}
	return &t, nil
}

// HasActiveByUser reports whether the user currently holds an ACTIVE target.
func (r *TargetRepository) HasActiveByUser(ctx context.Context, userID string) (bool, error) {
	_, err := r.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active target: %w", err)
	}
	return true, nil
}

// ListByUser returns a user's targets, newest first.
func (r *TargetRepository) ListByUser(ctx context.Context, userID string) ([]models.Target, error) {
	query := r.db.Rebind(`SELECT ` + targetColumns + ` FROM targets WHERE user_id = ? ORDER BY created_at DESC`)
	targets := []models.Target{}
	if err := r.db.SelectContext(ctx, &targets, query, userID); err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return targets, nil
}

// UpdateStatus transitions a target's lifecycle status.
func (r *TargetRepository) UpdateStatus(ctx context.Context, id string, status models.TargetStatus) error {
	query := r.db.Rebind(`UPDATE targets SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update target status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateProgress ledgers a contribution toward a target. The report_id unique
// constraint makes the write idempotent per source report; a duplicate insert
// is reported via the returned bool rather than an error.
func (r *TargetRepository) CreateProgress(ctx context.Context, p *models.TargetProgress) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO target_progress (id, target_id, report_id, amount, created_at)
VALUES (:id, :target_id, :report_id, :amount, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("create target progress: %w", err)
	}
	return true, nil
}

// SumProgress returns the total contributed toward a target.
func (r *TargetRepository) SumProgress(ctx context.Context, targetID string) (decimal.Decimal, error) {
	query := r.db.Rebind(`SELECT COALESCE(SUM(amount), 0) FROM target_progress WHERE target_id = ?`)
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, targetID); err != nil {
		return decimal.Zero, fmt.Errorf("sum target progress: %w", err)
	}
	return total, nil
}

// ListProgress returns a target's contribution ledger, oldest first.
func (r *TargetRepository) ListProgress(ctx context.Context, targetID string) ([]models.TargetProgress, error) {
	query := r.db.Rebind(`SELECT id, target_id, report_id, amount, created_at FROM target_progress WHERE target_id = ? ORDER BY created_at ASC`)
	entries := []models.TargetProgress{}
	if err := r.db.SelectContext(ctx, &entries, query, targetID); err != nil {
		return nil, fmt.Errorf("list target progress: %w", err)
	}
	return entries, nil
}

const progressReportColumns = `id, client_id, author_id, summary, amount, created_at`

// CreateReport inserts a progress report.
func (r *TargetRepository) CreateReport(ctx context.Context, report *models.ProgressReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO progress_reports (id, client_id, author_id, summary, amount, created_at)
VALUES (:id, :client_id, :author_id, :summary, :amount, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create progress report: %w", err)
	}
	return nil
}

// GetReport returns a progress report by identifier.
func (r *TargetRepository) GetReport(ctx context.Context, id string) (*models.ProgressReport, error) {
	query := r.db.Rebind(`SELECT ` + progressReportColumns + ` FROM progress_reports WHERE id = ?`)
	var report models.ProgressReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports returns progress reports, newest first, optionally scoped to a
// client or author.
func (r *TargetRepository) ListReports(ctx context.Context, clientID, authorID string, page, pageSize int) ([]models.ProgressReport, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if clientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, clientID)
	}
	if authorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, authorID)
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM progress_reports WHERE ` + cond)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count progress reports: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	query := r.db.Rebind(`SELECT ` + progressReportColumns + ` FROM progress_reports WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, pageSize, (page-1)*pageSize)
	reports := []models.ProgressReport{}
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list progress reports: %w", err)
	}
	return reports, total, nil
}

// isUniqueViolation matches duplicate-key errors from either backend without
// binding to driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
