package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// PartnerRepository persists partner organisations.
type PartnerRepository struct {
	db *database.DB
}

// NewPartnerRepository constructs the repository.
func NewPartnerRepository(db *database.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

const partnerColumns = `id, name, contact_email, contact_phone, notes, created_at, updated_at`

// Create inserts a partner.
func (r *PartnerRepository) Create(ctx context.Context, p *models.Partner) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	const query = `INSERT INTO partners (id, name, contact_email, contact_phone, notes, created_at, updated_at)
VALUES (:id, :name, :contact_email, :contact_phone, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

// GetByID returns a partner by identifier.
func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*models.Partner, error) {
	query := r.db.Rebind(`SELECT ` + partnerColumns + ` FROM partners WHERE id = ?`)
	var p models.Partner
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns partners ordered by name with pagination.
func (r *PartnerRepository) List(ctx context.Context, page, pageSize int) ([]models.Partner, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM partners`); err != nil {
		return nil, 0, fmt.Errorf("count partners: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	query := r.db.Rebind(`SELECT ` + partnerColumns + ` FROM partners ORDER BY name ASC LIMIT ? OFFSET ?`)
	partners := []models.Partner{}
	if err := r.db.SelectContext(ctx, &partners, query, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("list partners: %w", err)
	}
	return partners, total, nil
}

// Update modifies mutable fields of a partner.
func (r *PartnerRepository) Update(ctx context.Context, p *models.Partner) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE partners SET name = :name, contact_email = :contact_email,
contact_phone = :contact_phone, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("update partner: %w", err)
	}
	return nil
}

// Delete removes a partner.
func (r *PartnerRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM partners WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete partner: %w", err)
	}
	return nil
}
