package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// StaffRepository persists staff records.
type StaffRepository struct {
	db *database.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *database.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, user_id, department_id, position, phone, hired_at, created_at, updated_at`

// Create inserts a staff record.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	const query = `INSERT INTO staff (id, user_id, department_id, position, phone, hired_at, created_at, updated_at)
VALUES (:id, :user_id, :department_id, :position, :phone, :hired_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// GetByID returns a staff record by identifier.
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	query := r.db.Rebind(`SELECT ` + staffColumns + ` FROM staff WHERE id = ?`)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// GetByUserID returns the staff record owned by a user account.
func (r *StaffRepository) GetByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	query := r.db.Rebind(`SELECT ` + staffColumns + ` FROM staff WHERE user_id = ?`)
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, userID); err != nil {
		return nil, err
	}
	return &staff, nil
}

// List returns staff rows matching the filter with total count.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	base := `FROM staff WHERE 1=1`
	var args []interface{}
	if filter.DepartmentID != "" {
		base += ` AND department_id = ?`
		args = append(args, filter.DepartmentID)
	}
	if filter.UserID != "" {
		base += ` AND user_id = ?`
		args = append(args, filter.UserID)
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

	listQuery := r.db.Rebind(fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", staffColumns, base, pageSize, offset))
	var rows []models.Staff
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) " + base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}
	return rows, total, nil
}

// Update modifies mutable fields of a staff record.
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET department_id = :department_id, position = :position, phone = :phone,
hired_at = :hired_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// Delete removes a staff record.
func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM staff WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return nil
}
