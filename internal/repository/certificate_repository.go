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

// CertificateRepository persists certificate records and their render state.
type CertificateRepository struct {
	db *database.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *database.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, recipient_name, program_title, requested_by, status, storage_path, error, created_at, updated_at`

// Create inserts a certificate in PENDING state.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.Status == "" {
		cert.Status = models.CertificatePending
	}
	now := time.Now().UTC()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	const query = `INSERT INTO certificates (id, recipient_name, program_title, requested_by, status, storage_path, error, created_at, updated_at)
VALUES (:id, :recipient_name, :program_title, :requested_by, :status, :storage_path, :error, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByID returns a certificate by identifier.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := r.db.Rebind(`SELECT ` + certificateColumns + ` FROM certificates WHERE id = ?`)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// List returns certificates newest first, optionally scoped to the requester.
func (r *CertificateRepository) List(ctx context.Context, requestedBy string, page, pageSize int) ([]models.Certificate, int, error) {
	cond := "1=1"
	args := []interface{}{}
	if requestedBy != "" {
		cond = "requested_by = ?"
		args = append(args, requestedBy)
	}

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM certificates WHERE ` + cond)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	query := r.db.Rebind(`SELECT ` + certificateColumns + ` FROM certificates WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, pageSize, (page-1)*pageSize)
	certs := []models.Certificate{}
	if err := r.db.SelectContext(ctx, &certs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}
	return certs, total, nil
}

// MarkRendering transitions PENDING -> RENDERING. Returns sql.ErrNoRows when
// the record is no longer pending, so a retried job cannot double-render.
func (r *CertificateRepository) MarkRendering(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE certificates SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, query, models.CertificateRendering, time.Now().UTC(), id, models.CertificatePending)
	if err != nil {
		return fmt.Errorf("mark certificate rendering: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkReady records the rendered document's storage path.
func (r *CertificateRepository) MarkReady(ctx context.Context, id, storagePath string) error {
	query := r.db.Rebind(`UPDATE certificates SET status = ?, storage_path = ?, error = NULL, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, models.CertificateReady, storagePath, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark certificate ready: %w", err)
	}
	return nil
}

// MarkFailed records a terminal render failure.
func (r *CertificateRepository) MarkFailed(ctx context.Context, id, reason string) error {
	query := r.db.Rebind(`UPDATE certificates SET status = ?, error = ?, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, models.CertificateFailed, reason, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark certificate failed: %w", err)
	}
	return nil
}
