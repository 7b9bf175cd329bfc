package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubApprovalLedgers struct {
	ledger       *models.PettyCashLedger
	staleOnWrite bool
}

func (s *stubApprovalLedgers) GetByID(ctx context.Context, id string) (*models.PettyCashLedger, error) {
	if s.ledger == nil || s.ledger.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.ledger
	return &copy, nil
}

func (s *stubApprovalLedgers) UpdateApproval(ctx context.Context, ledger *models.PettyCashLedger, expectedVersion int64) error {
	if s.staleOnWrite || s.ledger.Version != expectedVersion {
		return sql.ErrNoRows
	}
	ledger.Version = expectedVersion + 1
	*s.ledger = *ledger
	return nil
}

type stubApprovalAssets struct {
	asset *models.Asset
}

func (s *stubApprovalAssets) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	if s.asset == nil || s.asset.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.asset
	return &copy, nil
}

func (s *stubApprovalAssets) UpdateApproval(ctx context.Context, asset *models.Asset, expectedVersion int64) error {
	if s.asset.Version != expectedVersion {
		return sql.ErrNoRows
	}
	asset.Version = expectedVersion + 1
	*s.asset = *asset
	return nil
}

type stubApprovalAudit struct {
	logs []*models.AuditLog
}

func (s *stubApprovalAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func strptr(s string) *string { return &s }

func pendingLedger() *models.PettyCashLedger {
	return &models.PettyCashLedger{
		ID:           "led-1",
		DepartmentID: "dept-1",
		CreatedBy:    "staff-1",
		Title:        "Q3 petty cash",
		Approvable:   models.NewApprovable(),
	}
}

func TestDeptHeadApprovalAdvancesToAdminStage(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger()}
	audit := &stubApprovalAudit{}
	b := &stubBroadcaster{}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, audit, b, zap.NewNop())

	actor := Actor{UserID: "head-1", Role: models.RoleDeptHead, DepartmentID: strptr("dept-1")}
	result, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, actor)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalPendingAdmin, result.ApprovalStatus)
	assert.False(t, result.Locked)
	assert.Equal(t, int64(2), result.Version)

	require.Len(t, b.events, 1)
	assert.Equal(t, "ledger_decided", b.events[0].Type)
	assert.Equal(t, []string{"staff-1"}, b.events[0].UserIDs)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionApprovalDecision, audit.logs[0].Action)
}

func TestDeptHeadRejectionLocksRecord(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger()}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	actor := Actor{UserID: "head-1", Role: models.RoleDeptHead, DepartmentID: strptr("dept-1")}
	result, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageRejected}, actor)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalRejected, result.ApprovalStatus)
	assert.True(t, result.Locked)

	// The record is terminal: the admin stage never opens.
	admin := Actor{UserID: "admin-1", Role: models.RoleAdmin}
	_, err = svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, admin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFullApprovalChain(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger()}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	head := Actor{UserID: "head-1", Role: models.RoleDeptHead, DepartmentID: strptr("dept-1")}
	_, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, head)
	require.NoError(t, err)

	admin := Actor{UserID: "admin-1", Role: models.RoleAdmin}
	result, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, admin)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalApproved, result.ApprovalStatus)
	assert.True(t, result.Locked)
	assert.Equal(t, int64(3), result.Version)
}

func TestDeptHeadOfOtherDepartmentForbidden(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger()}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	actor := Actor{UserID: "head-2", Role: models.RoleDeptHead, DepartmentID: strptr("dept-2")}
	_, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAdminCannotDecideDeptHeadStage(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger()}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	actor := Actor{UserID: "admin-1", Role: models.RoleAdmin}
	_, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestConcurrentDecisionReportsStaleVersion(t *testing.T) {
	ledgers := &stubApprovalLedgers{ledger: pendingLedger(), staleOnWrite: true}
	svc := NewApprovalService(ledgers, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	actor := Actor{UserID: "head-1", Role: models.RoleDeptHead, DepartmentID: strptr("dept-1")}
	_, err := svc.Decide(context.Background(), ApprovalKindLedger, "led-1", DecisionRequest{Decision: models.StageApproved}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleVersion.Code, appErrors.FromError(err).Code)
}

func TestAssetDecisionPushesToCreator(t *testing.T) {
	assets := &stubApprovalAssets{asset: &models.Asset{
		ID:           "ast-1",
		DepartmentID: "dept-1",
		CreatedBy:    "staff-9",
		Approvable:   models.NewApprovable(),
	}}
	b := &stubBroadcaster{}
	svc := NewApprovalService(&stubApprovalLedgers{}, assets, &stubApprovalAudit{}, b, zap.NewNop())

	actor := Actor{UserID: "head-1", Role: models.RoleDeptHead, DepartmentID: strptr("dept-1")}
	result, err := svc.Decide(context.Background(), ApprovalKindAsset, "ast-1", DecisionRequest{Decision: models.StageApproved}, actor)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalPendingAdmin, result.ApprovalStatus)
	require.Len(t, b.events, 1)
	assert.Equal(t, "asset_decided", b.events[0].Type)
	assert.Equal(t, []string{"staff-9"}, b.events[0].UserIDs)
}

func TestDecideUnknownRecordNotFound(t *testing.T) {
	svc := NewApprovalService(&stubApprovalLedgers{}, &stubApprovalAssets{}, &stubApprovalAudit{}, nil, zap.NewNop())

	actor := Actor{UserID: "admin-1", Role: models.RoleAdmin}
	_, err := svc.Decide(context.Background(), ApprovalKindLedger, "missing", DecisionRequest{Decision: models.StageApproved}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
