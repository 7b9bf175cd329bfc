package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/export"
	"github.com/crestline-hq/crestline-api/pkg/jobs"
	"github.com/crestline-hq/crestline-api/pkg/storage"
)

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	List(ctx context.Context, requestedBy string, page, pageSize int) ([]models.Certificate, int, error)
	MarkRendering(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id, storagePath string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// CreateCertificateRequest asks for a completion certificate.
type CreateCertificateRequest struct {
	RecipientName string `json:"recipient_name" validate:"required"`
	ProgramTitle  string `json:"program_title" validate:"required"`
}

// CertificateView is a certificate plus its signed download URL when ready.
type CertificateView struct {
	models.Certificate
	DownloadURL string `json:"download_url,omitempty"`
}

// CertificateService renders completion certificates asynchronously through
// the job queue and serves them via signed URLs.
type CertificateService struct {
	repo      certificateRepository
	renderer  *export.CertificateRenderer
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCertificateService constructs a CertificateService. Call StartWorkers
// before accepting requests.
func NewCertificateService(repo certificateRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, workers, retries int) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &CertificateService{
		repo:      repo,
		renderer:  export.NewCertificateRenderer(),
		storage:   store,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("certificates", s.handleRenderJob, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// StartWorkers begins consuming render jobs.
func (s *CertificateService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains the render workers.
func (s *CertificateService) StopWorkers() {
	s.queue.Stop()
}

// Request records a PENDING certificate and enqueues its render.
func (s *CertificateService) Request(ctx context.Context, requesterID string, req CreateCertificateRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	cert := &models.Certificate{
		RecipientName: req.RecipientName,
		ProgramTitle:  req.ProgramTitle,
		RequestedBy:   requesterID,
		Status:        models.CertificatePending,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: cert.ID, Type: "certificate.render", Payload: cert.ID}); err != nil {
		s.logger.Error("failed to enqueue certificate render", zap.String("certificate_id", cert.ID), zap.Error(err))
		if markErr := s.repo.MarkFailed(ctx, cert.ID, "failed to enqueue render"); markErr != nil {
			s.logger.Warn("failed to mark certificate failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule render")
	}

	return cert, nil
}

func (s *CertificateService) handleRenderJob(ctx context.Context, job jobs.Job) error {
	certID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("certificate job with invalid payload", zap.String("job_id", job.ID))
		return nil
	}

	if err := s.repo.MarkRendering(ctx, certID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already picked up by an earlier attempt.
			return nil
		}
		return fmt.Errorf("mark rendering: %w", err)
	}

	cert, err := s.repo.GetByID(ctx, certID)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}

	pdfBytes, err := s.renderer.Render(export.CertificateData{
		RecipientName: cert.RecipientName,
		ProgramTitle:  cert.ProgramTitle,
		IssuedAt:      time.Now().UTC(),
	})
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, certID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark certificate failed", zap.Error(markErr))
		}
		return nil
	}

	filename := fmt.Sprintf("certificates/%s.pdf", certID)
	path, err := s.storage.Save(filename, pdfBytes)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, certID, "failed to store document"); markErr != nil {
			s.logger.Warn("failed to mark certificate failed", zap.Error(markErr))
		}
		return fmt.Errorf("store certificate: %w", err)
	}

	if err := s.repo.MarkReady(ctx, certID, path); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	s.logger.Info("certificate rendered", zap.String("certificate_id", certID))
	return nil
}

// Get returns a certificate; READY ones carry a signed download URL. The
// requester or an admin may read it.
func (s *CertificateService) Get(ctx context.Context, id string, actor Actor) (*CertificateView, error) {
	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if actor.Role != models.RoleAdmin && cert.RequestedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another user")
	}

	view := &CertificateView{Certificate: *cert}
	if cert.Status == models.CertificateReady && cert.StoragePath != nil && s.signer != nil {
		url, _, err := s.signer.Generate(cert.ID, *cert.StoragePath)
		if err != nil {
			s.logger.Warn("failed to sign certificate url", zap.Error(err))
		} else {
			view.DownloadURL = url
		}
	}
	return view, nil
}

// List returns certificates; non-admins see only their own requests.
func (s *CertificateService) List(ctx context.Context, actor Actor, page, pageSize int) ([]models.Certificate, *models.Pagination, error) {
	requestedBy := ""
	if actor.Role != models.RoleAdmin {
		requestedBy = actor.UserID
	}

	certs, total, err := s.repo.List(ctx, requestedBy, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return certs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
