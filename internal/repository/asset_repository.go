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

// AssetRepository persists assets and depreciation snapshots.
type AssetRepository struct {
	db *database.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *database.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `id, department_id, created_by, name, purchase_price, depreciation_rate, date_acquired,
dept_head_status, admin_status, approval_status, locked, version, created_at, updated_at`

// Create inserts a new asset in its initial approval state.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now
	const query = `INSERT INTO assets (id, department_id, created_by, name, purchase_price, depreciation_rate, date_acquired,
dept_head_status, admin_status, approval_status, locked, version, created_at, updated_at)
VALUES (:id, :department_id, :created_by, :name, :purchase_price, :depreciation_rate, :date_acquired,
:dept_head_status, :admin_status, :approval_status, :locked, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, asset); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// GetByID fetches an asset by identifier.
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	query := r.db.Rebind(`SELECT ` + assetColumns + ` FROM assets WHERE id = ?`)
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns assets matching the filter, newest first, with total count.
func (r *AssetRepository) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	base := `FROM assets WHERE 1=1`
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

	listQuery := r.db.Rebind(fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", assetColumns, base, pageSize, offset))
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}

	countQuery := r.db.Rebind("SELECT COUNT(*) " + base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}
	return assets, total, nil
}

// ListApproved returns all approved assets (depreciation snapshot input).
func (r *AssetRepository) ListApproved(ctx context.Context) ([]models.Asset, error) {
	query := r.db.Rebind(`SELECT ` + assetColumns + ` FROM assets WHERE approval_status = ?`)
	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, models.ApprovalApproved); err != nil {
		return nil, fmt.Errorf("list approved assets: %w", err)
	}
	return assets, nil
}

// UpdateApproval commits a decision with an optimistic version check;
// sql.ErrNoRows signals a stale read or terminal record.
func (r *AssetRepository) UpdateApproval(ctx context.Context, asset *models.Asset, expectedVersion int64) error {
	asset.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE assets
SET dept_head_status = ?, admin_status = ?, approval_status = ?, locked = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?`)
	res, err := r.db.ExecContext(ctx, query,
		asset.DeptHeadStatus, asset.AdminStatus, asset.ApprovalStatus, asset.Locked,
		expectedVersion+1, asset.UpdatedAt, asset.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update asset approval: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check asset approval rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	asset.Version = expectedVersion + 1
	return nil
}

// CreateDepreciation stores a depreciation snapshot row.
func (r *AssetRepository) CreateDepreciation(ctx context.Context, snap *models.AssetDepreciation) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO asset_depreciation (id, asset_id, snapshot_date, accumulated, book_value, created_at)
VALUES (:id, :asset_id, :snapshot_date, :accumulated, :book_value, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snap); err != nil {
		return fmt.Errorf("create depreciation snapshot: %w", err)
	}
	return nil
}

// ListDepreciation returns snapshots for an asset, newest first.
func (r *AssetRepository) ListDepreciation(ctx context.Context, assetID string) ([]models.AssetDepreciation, error) {
	query := r.db.Rebind(`SELECT id, asset_id, snapshot_date, accumulated, book_value, created_at
FROM asset_depreciation WHERE asset_id = ? ORDER BY snapshot_date DESC`)
	var snaps []models.AssetDepreciation
	if err := r.db.SelectContext(ctx, &snaps, query, assetID); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list depreciation snapshots: %w", err)
	}
	return snaps, nil
}
