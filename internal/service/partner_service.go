package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type partnerRepository interface {
	Create(ctx context.Context, p *models.Partner) error
	GetByID(ctx context.Context, id string) (*models.Partner, error)
	List(ctx context.Context, page, pageSize int) ([]models.Partner, int, error)
	Update(ctx context.Context, p *models.Partner) error
	Delete(ctx context.Context, id string) error
}

// PartnerRequest is the create/update payload for partners.
type PartnerRequest struct {
	Name         string  `json:"name" validate:"required"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone"`
	Notes        *string `json:"notes"`
}

// PartnerService manages partner organisations.
type PartnerService struct {
	repo      partnerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPartnerService constructs a PartnerService.
func NewPartnerService(repo partnerRepository, validate *validator.Validate, logger *zap.Logger) *PartnerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PartnerService{repo: repo, validator: validate, logger: logger}
}

// Create registers a partner.
func (s *PartnerService) Create(ctx context.Context, req PartnerRequest) (*models.Partner, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid partner payload")
	}

	p := &models.Partner{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create partner")
	}
	return p, nil
}

// Get returns one partner.
func (s *PartnerService) Get(ctx context.Context, id string) (*models.Partner, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "partner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load partner")
	}
	return p, nil
}

// List returns partners with pagination.
func (s *PartnerService) List(ctx context.Context, page, pageSize int) ([]models.Partner, *models.Pagination, error) {
	partners, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list partners")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return partners, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update modifies a partner.
func (s *PartnerService) Update(ctx context.Context, id string, req PartnerRequest) (*models.Partner, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid partner payload")
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Name = req.Name
	p.ContactEmail = req.ContactEmail
	p.ContactPhone = req.ContactPhone
	p.Notes = req.Notes

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update partner")
	}
	return p, nil
}

// Delete removes a partner.
func (s *PartnerService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete partner")
	}
	return nil
}
