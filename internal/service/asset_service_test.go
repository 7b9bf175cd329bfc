package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubAssetRepo struct {
	assets    map[string]*models.Asset
	snapshots []models.AssetDepreciation
	failSnap  map[string]bool
}

func newStubAssetRepo() *stubAssetRepo {
	return &stubAssetRepo{assets: make(map[string]*models.Asset), failSnap: make(map[string]bool)}
}

func (s *stubAssetRepo) Create(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	s.assets[asset.ID] = asset
	return nil
}

func (s *stubAssetRepo) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	if a, ok := s.assets[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAssetRepo) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	var out []models.Asset
	for _, a := range s.assets {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (s *stubAssetRepo) ListApproved(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	for _, a := range s.assets {
		if a.ApprovalStatus == models.ApprovalApproved {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *stubAssetRepo) CreateDepreciation(ctx context.Context, snap *models.AssetDepreciation) error {
	if s.failSnap[snap.AssetID] {
		return errors.New("insert failed")
	}
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

func (s *stubAssetRepo) ListDepreciation(ctx context.Context, assetID string) ([]models.AssetDepreciation, error) {
	var out []models.AssetDepreciation
	for _, snap := range s.snapshots {
		if snap.AssetID == assetID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func TestCreateAssetStartsPendingDeptHead(t *testing.T) {
	repo := newStubAssetRepo()
	svc := NewAssetService(repo, nil, zap.NewNop())

	asset, err := svc.Create(context.Background(), "staff-1", CreateAssetRequest{
		DepartmentID:     "dept-1",
		Name:             "Laser printer",
		PurchasePrice:    dec("1000"),
		DepreciationRate: dec("0.05"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPendingDeptHead, asset.ApprovalStatus)
	assert.False(t, asset.DateAcquired.IsZero())
	assert.Equal(t, int64(1), asset.Version)
}

func TestCreateAssetValidatesRate(t *testing.T) {
	svc := NewAssetService(newStubAssetRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "staff-1", CreateAssetRequest{
		DepartmentID:     "dept-1",
		Name:             "Bad rate",
		PurchasePrice:    dec("100"),
		DepreciationRate: dec("1.5"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDepreciationViewComputesCurrentValue(t *testing.T) {
	repo := newStubAssetRepo()
	svc := NewAssetService(repo, nil, zap.NewNop())

	acquired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asset, err := svc.Create(context.Background(), "staff-1", CreateAssetRequest{
		DepartmentID:     "dept-1",
		Name:             "Server rack",
		PurchasePrice:    dec("1000"),
		DepreciationRate: dec("0.10"),
		DateAcquired:     acquired,
	})
	require.NoError(t, err)

	asOf := acquired.Add(time.Duration(float64(time.Hour) * 24 * 365.25))
	view, err := svc.Depreciation(context.Background(), asset.ID, asOf)
	require.NoError(t, err)

	accumulated, _ := view.Accumulated.Float64()
	bookValue, _ := view.BookValue.Float64()
	assert.InDelta(t, 100, accumulated, 0.01)
	assert.InDelta(t, 900, bookValue, 0.01)
}

func TestSnapshotAllCoversApprovedAssetsOnly(t *testing.T) {
	repo := newStubAssetRepo()
	svc := NewAssetService(repo, nil, zap.NewNop())

	approved := &models.Asset{
		ID: "a-approved", DepartmentID: "dept-1", Name: "Desk",
		PurchasePrice: dec("500"), DepreciationRate: dec("0.10"),
		DateAcquired: time.Now().UTC().AddDate(-1, 0, 0),
		Approvable:   models.Approvable{DeptHeadStatus: models.StageApproved, AdminStatus: models.StageApproved, ApprovalStatus: models.ApprovalApproved, Locked: true, Version: 3},
	}
	pending := &models.Asset{
		ID: "a-pending", DepartmentID: "dept-1", Name: "Chair",
		PurchasePrice: dec("100"), DepreciationRate: dec("0.10"),
		DateAcquired: time.Now().UTC(),
		Approvable:   models.NewApprovable(),
	}
	repo.assets[approved.ID] = approved
	repo.assets[pending.ID] = pending

	require.NoError(t, svc.SnapshotAll(context.Background()))

	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, "a-approved", repo.snapshots[0].AssetID)
	assert.True(t, repo.snapshots[0].Accumulated.GreaterThan(decimal.Zero))
	assert.True(t, repo.snapshots[0].BookValue.LessThan(approved.PurchasePrice))
}

func TestSnapshotAllSkipsFailingAsset(t *testing.T) {
	repo := newStubAssetRepo()
	svc := NewAssetService(repo, nil, zap.NewNop())

	for _, id := range []string{"a1", "a2"} {
		repo.assets[id] = &models.Asset{
			ID: id, DepartmentID: "dept-1", Name: id,
			PurchasePrice: dec("100"), DepreciationRate: dec("0.10"),
			DateAcquired: time.Now().UTC().AddDate(-1, 0, 0),
			Approvable:   models.Approvable{DeptHeadStatus: models.StageApproved, AdminStatus: models.StageApproved, ApprovalStatus: models.ApprovalApproved, Locked: true, Version: 3},
		}
	}
	repo.failSnap["a1"] = true

	require.NoError(t, svc.SnapshotAll(context.Background()))
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, "a2", repo.snapshots[0].AssetID)
}
