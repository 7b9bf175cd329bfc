package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type assetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error)
	ListApproved(ctx context.Context) ([]models.Asset, error)
	CreateDepreciation(ctx context.Context, snap *models.AssetDepreciation) error
	ListDepreciation(ctx context.Context, assetID string) ([]models.AssetDepreciation, error)
}

// CreateAssetRequest registers a fixed asset.
type CreateAssetRequest struct {
	DepartmentID     string          `json:"department_id" validate:"required"`
	Name             string          `json:"name" validate:"required"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	DepreciationRate decimal.Decimal `json:"depreciation_rate"`
	DateAcquired     time.Time       `json:"date_acquired"`
}

// DepreciationView reports an asset's value at a point in time.
type DepreciationView struct {
	AssetID     string                     `json:"asset_id"`
	AsOf        time.Time                  `json:"as_of"`
	Accumulated decimal.Decimal            `json:"accumulated"`
	BookValue   decimal.Decimal            `json:"book_value"`
	Snapshots   []models.AssetDepreciation `json:"snapshots,omitempty"`
}

// AssetService manages fixed assets and their depreciation schedule.
type AssetService struct {
	repo      assetRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssetService constructs an AssetService.
func NewAssetService(repo assetRepository, validate *validator.Validate, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssetService{repo: repo, validator: validate, logger: logger}
}

// Create registers an asset in the initial approval state.
func (s *AssetService) Create(ctx context.Context, creatorID string, req CreateAssetRequest) (*models.Asset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid asset payload")
	}
	if !req.PurchasePrice.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purchase price must be positive")
	}
	if req.DepreciationRate.IsNegative() || req.DepreciationRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "depreciation rate must be between 0 and 1")
	}
	dateAcquired := req.DateAcquired
	if dateAcquired.IsZero() {
		dateAcquired = time.Now().UTC()
	}

	asset := &models.Asset{
		DepartmentID:     req.DepartmentID,
		CreatedBy:        creatorID,
		Name:             req.Name,
		PurchasePrice:    req.PurchasePrice,
		DepreciationRate: req.DepreciationRate,
		DateAcquired:     dateAcquired,
		Approvable:       models.NewApprovable(),
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create asset")
	}
	return asset, nil
}

// Get returns one asset.
func (s *AssetService) Get(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	return asset, nil
}

// List returns assets matching the filter.
func (s *AssetService) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, *models.Pagination, error) {
	assets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assets")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return assets, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Depreciation returns the asset's current computed value plus any stored
// snapshot history.
func (s *AssetService) Depreciation(ctx context.Context, id string, asOf time.Time) (*DepreciationView, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	accumulated, bookValue := asset.DepreciationAt(asOf)

	snapshots, err := s.repo.ListDepreciation(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load depreciation history")
	}

	return &DepreciationView{
		AssetID:     asset.ID,
		AsOf:        asOf,
		Accumulated: accumulated,
		BookValue:   bookValue,
		Snapshots:   snapshots,
	}, nil
}

// SnapshotAll writes a depreciation snapshot row for every approved asset.
// Run nightly by the cron scheduler; failures on individual assets are
// logged and skipped so one bad record cannot stall the sweep.
func (s *AssetService) SnapshotAll(ctx context.Context) error {
	assets, err := s.repo.ListApproved(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved assets")
	}

	now := time.Now().UTC()
	for i := range assets {
		asset := &assets[i]
		accumulated, bookValue := asset.DepreciationAt(now)
		snap := &models.AssetDepreciation{
			AssetID:      asset.ID,
			SnapshotDate: now,
			Accumulated:  accumulated,
			BookValue:    bookValue,
		}
		if err := s.repo.CreateDepreciation(ctx, snap); err != nil {
			s.logger.Warn("failed to snapshot asset depreciation",
				zap.String("asset_id", asset.ID), zap.Error(err))
		}
	}

	s.logger.Info("depreciation snapshot sweep complete", zap.Int("assets", len(assets)))
	return nil
}
