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
	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type targetRepository interface {
	Create(ctx context.Context, t *models.Target) error
	GetByID(ctx context.Context, id string) (*models.Target, error)
	GetActiveByUser(ctx context.Context, userID string) (*models.Target, error)
	ListByUser(ctx context.Context, userID string) ([]models.Target, error)
	UpdateStatus(ctx context.Context, id string, status models.TargetStatus) error
	CreateProgress(ctx context.Context, p *models.TargetProgress) (bool, error)
	SumProgress(ctx context.Context, targetID string) (decimal.Decimal, error)
	ListProgress(ctx context.Context, targetID string) ([]models.TargetProgress, error)
	CreateReport(ctx context.Context, report *models.ProgressReport) error
	GetReport(ctx context.Context, id string) (*models.ProgressReport, error)
	ListReports(ctx context.Context, clientID, authorID string, page, pageSize int) ([]models.ProgressReport, int, error)
}

type reportClientResolver interface {
	FindOrCreateByName(ctx context.Context, actorID, companyName string) (*models.Client, bool, error)
	Get(ctx context.Context, id string, actor Actor) (*models.Client, error)
}

// CreateTargetRequest opens a goal for a user.
type CreateTargetRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Title  string          `json:"title" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateReportRequest records work done for a client. Exactly one of
// ClientID or ClientName identifies the client; an unknown name provisions
// one.
type CreateReportRequest struct {
	ClientID   string          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Summary    string          `json:"summary" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

// TargetView is a target with its achieved total.
type TargetView struct {
	models.Target
	Achieved decimal.Decimal `json:"achieved"`
}

// TargetService manages targets, their contribution ledger, and the progress
// reports that feed it.
type TargetService struct {
	repo        targetRepository
	clients     reportClientResolver
	broadcaster notify.Broadcaster
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewTargetService constructs a TargetService. metrics may be nil.
func NewTargetService(repo targetRepository, clients reportClientResolver, broadcaster notify.Broadcaster, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *TargetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TargetService{repo: repo, clients: clients, broadcaster: broadcaster, validator: validate, logger: logger, metrics: metrics}
}

// CreateTarget opens a target. A user holds at most one ACTIVE target.
func (s *TargetService) CreateTarget(ctx context.Context, req CreateTargetRequest) (*models.Target, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid target payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target amount must be positive")
	}

	if _, err := s.repo.GetActiveByUser(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has an active target")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active target")
	}

	t := &models.Target{UserID: req.UserID, Title: req.Title, Amount: req.Amount, Status: models.TargetActive}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create target")
	}
	return t, nil
}

// GetTarget returns a target with its achieved total.
func (s *TargetService) GetTarget(ctx context.Context, id string) (*TargetView, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target")
	}

	start := time.Now()
	achieved, err := s.repo.SumProgress(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum progress")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("target_progress_sum", time.Since(start))
	}
	return &TargetView{Target: *t, Achieved: achieved}, nil
}

// ListTargets returns a user's targets.
func (s *TargetService) ListTargets(ctx context.Context, userID string) ([]models.Target, error) {
	targets, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list targets")
	}
	return targets, nil
}

// CloseTarget transitions a target to CLOSED.
func (s *TargetService) CloseTarget(ctx context.Context, id string) error {
	if err := s.repo.UpdateStatus(ctx, id, models.TargetClosed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "target not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close target")
	}
	return nil
}

// Progress returns a target's contribution ledger.
func (s *TargetService) Progress(ctx context.Context, targetID string) ([]models.TargetProgress, error) {
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target")
	}
	entries, err := s.repo.ListProgress(ctx, targetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}
	return entries, nil
}

// CreateReport records a progress report and, when the author holds an
// ACTIVE target, ledgers the amount toward it exactly once per report.
func (s *TargetService) CreateReport(ctx context.Context, actor Actor, req CreateReportRequest) (*models.ProgressReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount cannot be negative")
	}

	clientID := req.ClientID
	switch {
	case clientID != "" && req.ClientName != "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "use client_id or client_name, not both")
	case clientID != "":
		if _, err := s.clients.Get(ctx, clientID, actor); err != nil {
			return nil, err
		}
	case req.ClientName != "":
		client, created, err := s.clients.FindOrCreateByName(ctx, actor.UserID, req.ClientName)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info("provisioned client from progress report",
				zap.String("client_id", client.ID), zap.String("company_name", client.CompanyName))
		}
		clientID = client.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "client_id or client_name is required")
	}

	report := &models.ProgressReport{ClientID: clientID, AuthorID: actor.UserID, Summary: req.Summary, Amount: req.Amount}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}

	s.push(ctx, "progress_report_created", []string{actor.UserID}, report)
	s.recordContribution(ctx, report)

	return report, nil
}

// recordContribution ledgers the report toward the author's active target.
// The report-id unique key makes a retried call a no-op.
func (s *TargetService) recordContribution(ctx context.Context, report *models.ProgressReport) {
	target, err := s.repo.GetActiveByUser(ctx, report.AuthorID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to look up active target", zap.Error(err))
		}
		return
	}

	inserted, err := s.repo.CreateProgress(ctx, &models.TargetProgress{
		TargetID: target.ID,
		ReportID: report.ID,
		Amount:   report.Amount,
	})
	if err != nil {
		s.logger.Warn("failed to record target progress", zap.Error(err))
		return
	}
	if !inserted {
		return
	}

	achieved, err := s.repo.SumProgress(ctx, target.ID)
	if err != nil {
		s.logger.Warn("failed to sum target progress", zap.Error(err))
		achieved = decimal.Zero
	}
	s.push(ctx, "target_progress_updated", []string{report.AuthorID}, &TargetView{Target: *target, Achieved: achieved})
}

// GetReport returns one progress report.
func (s *TargetService) GetReport(ctx context.Context, id string) (*models.ProgressReport, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// ListReports returns progress reports, scoped for non-admin callers.
func (s *TargetService) ListReports(ctx context.Context, actor Actor, clientID string, page, pageSize int) ([]models.ProgressReport, *models.Pagination, error) {
	authorID := ""
	if actor.Role == models.RoleStaff {
		authorID = actor.UserID
	}

	start := time.Now()
	reports, total, err := s.repo.ListReports(ctx, clientID, authorID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("report_list", time.Since(start))
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return reports, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *TargetService) push(ctx context.Context, eventType string, userIDs []string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(ctx, notify.Event{Type: eventType, UserIDs: userIDs, Payload: payload}); err != nil {
		s.logger.Warn("failed to push event", zap.String("type", eventType), zap.Error(err))
	}
}
