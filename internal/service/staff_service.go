package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type staffRepository interface {
	Create(ctx context.Context, staff *models.Staff) error
	GetByID(ctx context.Context, id string) (*models.Staff, error)
	GetByUserID(ctx context.Context, userID string) (*models.Staff, error)
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error)
	Update(ctx context.Context, staff *models.Staff) error
	Delete(ctx context.Context, id string) error
}

// CreateStaffRequest links a user to a department as staff.
type CreateStaffRequest struct {
	UserID       string     `json:"user_id" validate:"required"`
	DepartmentID string     `json:"department_id" validate:"required"`
	Position     *string    `json:"position"`
	Phone        *string    `json:"phone"`
	HiredAt      *time.Time `json:"hired_at"`
}

// UpdateStaffRequest modifies a staff record.
type UpdateStaffRequest struct {
	DepartmentID string     `json:"department_id" validate:"required"`
	Position     *string    `json:"position"`
	Phone        *string    `json:"phone"`
	HiredAt      *time.Time `json:"hired_at"`
}

// StaffService manages staff records with role-scoped visibility.
type StaffService struct {
	repo      staffRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs a StaffService.
func NewStaffService(repo staffRepository, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StaffService{repo: repo, validator: validate, logger: logger}
}

// Create registers a staff record.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	if _, err := s.repo.GetByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already has a staff record")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check staff record")
	}

	staff := &models.Staff{
		UserID:       req.UserID,
		DepartmentID: req.DepartmentID,
		Position:     req.Position,
		Phone:        req.Phone,
		HiredAt:      req.HiredAt,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff")
	}
	return staff, nil
}

// Get returns one staff record, enforcing role-scoped visibility: STAFF see
// only their own record, DEPT_HEAD only their department's.
func (s *StaffService) Get(ctx context.Context, id string, actor Actor) (*models.Staff, error) {
	staff, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDeptHead:
		if actor.DepartmentID == nil || *actor.DepartmentID != staff.DepartmentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "staff record belongs to another department")
		}
	case models.RoleStaff:
		if staff.UserID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "staff may only view their own record")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}
	return staff, nil
}

// List returns staff visible to the actor.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter, actor Actor) ([]models.Staff, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleDeptHead:
		if actor.DepartmentID == nil {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "department head has no department")
		}
		filter.DepartmentID = *actor.DepartmentID
	case models.RoleStaff:
		filter.UserID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "forbidden")
	}

	staff, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return staff, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update modifies a staff record.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	staff, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}

	staff.DepartmentID = req.DepartmentID
	staff.Position = req.Position
	staff.Phone = req.Phone
	staff.HiredAt = req.HiredAt

	if err := s.repo.Update(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff")
	}
	return staff, nil
}

// Delete removes a staff record.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff")
	}
	return nil
}
