package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// ClientRepository persists client companies.
type ClientRepository struct {
	db *database.DB
}

// NewClientRepository constructs the repository.
func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, user_id, company_name, contact_name, contact_phone, industry, created_at, updated_at`

// Create inserts a new client row.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now
	const query = `INSERT INTO clients (id, user_id, company_name, contact_name, contact_phone, industry, created_at, updated_at)
VALUES (:id, :user_id, :company_name, :contact_name, :contact_phone, :industry, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// GetByID returns a client by identifier.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := r.db.Rebind(`SELECT ` + clientColumns + ` FROM clients WHERE id = ?`)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByUserID returns the client owned by a user account.
func (r *ClientRepository) GetByUserID(ctx context.Context, userID string) (*models.Client, error) {
	query := r.db.Rebind(`SELECT ` + clientColumns + ` FROM clients WHERE user_id = ?`)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, userID); err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByCompanyName performs a case-sensitive exact match lookup.
func (r *ClientRepository) GetByCompanyName(ctx context.Context, name string) (*models.Client, error) {
	query := r.db.Rebind(`SELECT ` + clientColumns + ` FROM clients WHERE company_name = ?`)
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, name); err != nil {
		return nil, err
	}
	return &client, nil
}

// List returns clients matching the filter with total count.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	base := `FROM clients WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		base += ` AND LOWER(company_name) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	listQuery := r.db.Rebind(fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", clientColumns, base, pageSize, offset))
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) " + base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return clients, total, nil
}

// Update modifies mutable fields of a client.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET company_name = :company_name, contact_name = :contact_name,
contact_phone = :contact_phone, industry = :industry, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// Delete removes a client row.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM clients WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}
