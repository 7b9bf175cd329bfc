package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

// ApprovalKind names an approvable record type.
type ApprovalKind string

const (
	ApprovalKindLedger ApprovalKind = "ledger"
	ApprovalKindAsset  ApprovalKind = "asset"
)

type approvalLedgerRepository interface {
	GetByID(ctx context.Context, id string) (*models.PettyCashLedger, error)
	UpdateApproval(ctx context.Context, ledger *models.PettyCashLedger, expectedVersion int64) error
}

type approvalAssetRepository interface {
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	UpdateApproval(ctx context.Context, asset *models.Asset, expectedVersion int64) error
}

type approvalAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// DecisionRequest carries one stage decision.
type DecisionRequest struct {
	Decision models.StageStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Comment  string             `json:"comment"`
}

// Actor identifies who is deciding.
type Actor struct {
	UserID       string
	Role         models.UserRole
	DepartmentID *string
}

// DecisionResult reports the record's approval state after a decision.
type DecisionResult struct {
	Kind           ApprovalKind          `json:"kind"`
	ID             string                `json:"id"`
	ApprovalStatus models.ApprovalStatus `json:"approval_status"`
	Locked         bool                  `json:"locked"`
	Version        int64                 `json:"version"`
}

// ApprovalService runs the shared two-stage approval state machine for
// petty-cash ledgers and assets.
type ApprovalService struct {
	ledgers     approvalLedgerRepository
	assets      approvalAssetRepository
	audit       approvalAuditRepository
	broadcaster notify.Broadcaster
	logger      *zap.Logger
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(ledgers approvalLedgerRepository, assets approvalAssetRepository, audit approvalAuditRepository, broadcaster notify.Broadcaster, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{ledgers: ledgers, assets: assets, audit: audit, broadcaster: broadcaster, logger: logger}
}

// Decide applies one stage decision. The dept-head stage belongs to the
// owning department's DEPT_HEAD, the admin stage to ADMIN. Terminal records
// reject further decisions; a stale read fails the optimistic version check.
func (s *ApprovalService) Decide(ctx context.Context, kind ApprovalKind, id string, req DecisionRequest, actor Actor) (*DecisionResult, error) {
	if req.Decision != models.StageApproved && req.Decision != models.StageRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	switch kind {
	case ApprovalKindLedger:
		return s.decideLedger(ctx, id, req, actor)
	case ApprovalKindAsset:
		return s.decideAsset(ctx, id, req, actor)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval kind")
	}
}

func (s *ApprovalService) decideLedger(ctx context.Context, id string, req DecisionRequest, actor Actor) (*DecisionResult, error) {
	ledger, err := s.ledgers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}

	next, err := s.advance(&ledger.Approvable, ledger.DepartmentID, req.Decision, actor)
	if err != nil {
		return nil, err
	}

	expected := ledger.Version
	ledger.Approvable = *next
	if err := s.ledgers.UpdateApproval(ctx, ledger, expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleVersion, "ledger was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}

	result := &DecisionResult{Kind: ApprovalKindLedger, ID: ledger.ID, ApprovalStatus: ledger.ApprovalStatus, Locked: ledger.Locked, Version: ledger.Version}
	s.finishDecision(ctx, "ledger_decided", ledger.CreatedBy, actor, "petty_cash_ledgers", ledger.ID, result)
	return result, nil
}

func (s *ApprovalService) decideAsset(ctx context.Context, id string, req DecisionRequest, actor Actor) (*DecisionResult, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}

	next, err := s.advance(&asset.Approvable, asset.DepartmentID, req.Decision, actor)
	if err != nil {
		return nil, err
	}

	expected := asset.Version
	asset.Approvable = *next
	if err := s.assets.UpdateApproval(ctx, asset, expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleVersion, "asset was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}

	result := &DecisionResult{Kind: ApprovalKindAsset, ID: asset.ID, ApprovalStatus: asset.ApprovalStatus, Locked: asset.Locked, Version: asset.Version}
	s.finishDecision(ctx, "asset_decided", asset.CreatedBy, actor, "assets", asset.ID, result)
	return result, nil
}

// advance validates the actor against the pending stage and returns the next
// approval state. Version is left untouched; the repository bumps it on the
// successful compare-and-swap.
func (s *ApprovalService) advance(current *models.Approvable, departmentID string, decision models.StageStatus, actor Actor) (*models.Approvable, error) {
	if current.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "record already has a final decision")
	}

	next := *current
	switch current.ApprovalStatus {
	case models.ApprovalPendingDeptHead:
		if actor.Role != models.RoleDeptHead || actor.DepartmentID == nil || *actor.DepartmentID != departmentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "dept-head stage requires the owning department's head")
		}
		next.DeptHeadStatus = decision
	case models.ApprovalPendingAdmin:
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "admin stage requires an admin")
		}
		next.AdminStatus = decision
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "record is not awaiting a decision")
	}

	next.ApprovalStatus = models.DeriveApprovalStatus(next.DeptHeadStatus, next.AdminStatus)
	if next.Terminal() {
		next.Locked = true
	}
	return &next, nil
}

func (s *ApprovalService) finishDecision(ctx context.Context, eventType, creatorID string, actor Actor, resource, resourceID string, result *DecisionResult) {
	if s.broadcaster != nil {
		err := s.broadcaster.Broadcast(ctx, notify.Event{Type: eventType, UserIDs: []string{creatorID}, Payload: result})
		if err != nil {
			s.logger.Warn("failed to push decision event", zap.String("type", eventType), zap.Error(err))
		}
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionApprovalDecision,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  []byte(fmt.Sprintf(`{"approval_status":%q}`, result.ApprovalStatus)),
	}); err != nil {
		s.logger.Warn("failed to record decision audit log", zap.Error(err))
	}
}
