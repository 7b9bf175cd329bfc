package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type clientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByUserID(ctx context.Context, userID string) (*models.Client, error)
	GetByCompanyName(ctx context.Context, name string) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error)
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id string) error
}

type clientUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateClientRequest registers a client company.
type CreateClientRequest struct {
	CompanyName  string  `json:"company_name" validate:"required"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	Industry     *string `json:"industry"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Password     string  `json:"password" validate:"omitempty,min=6"`
}

// UpdateClientRequest modifies a client's profile.
type UpdateClientRequest struct {
	CompanyName  string  `json:"company_name" validate:"required"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	Industry     *string `json:"industry"`
}

// ClientService manages client companies and their backing user accounts.
type ClientService struct {
	repo        clientRepository
	users       clientUserRepository
	broadcaster notify.Broadcaster
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClientService constructs a ClientService.
func NewClientService(repo clientRepository, users clientUserRepository, broadcaster notify.Broadcaster, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClientService{repo: repo, users: users, broadcaster: broadcaster, validator: validate, logger: logger}
}

// Create registers a client with an explicit backing user account.
func (s *ClientService) Create(ctx context.Context, actorID string, req CreateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}

	if _, err := s.repo.GetByCompanyName(ctx, req.CompanyName); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "company name already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check company name")
	}

	client, err := s.provision(ctx, actorID, req)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// FindOrCreateByName returns the client whose company name matches exactly
// (case-sensitive), provisioning the client and a backing CLIENT user when
// none exists. Repeated calls with the same name return the same record.
func (s *ClientService) FindOrCreateByName(ctx context.Context, actorID, companyName string) (*models.Client, bool, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "company name is required")
	}

	client, err := s.repo.GetByCompanyName(ctx, name)
	if err == nil {
		return client, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up client")
	}

	client, err = s.provision(ctx, actorID, CreateClientRequest{CompanyName: name})
	if err != nil {
		return nil, false, err
	}
	return client, true, nil
}

// provision creates the backing user and the client row. Generated accounts
// get a slug email and a random password; the client resets it out of band.
func (s *ClientService) provision(ctx context.Context, actorID string, req CreateClientRequest) (*models.Client, error) {
	email := strings.ToLower(req.Email)
	if email == "" {
		email = fmt.Sprintf("client-%s@clients.local", uuid.NewString()[:8])
	}
	password := req.Password
	if password == "" {
		password = uuid.NewString()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.CompanyName,
		Role:         models.RoleClient,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client user")
	}

	client := &models.Client{
		UserID:       user.ID,
		CompanyName:  req.CompanyName,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Industry:     req.Industry,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}

	payload, _ := json.Marshal(map[string]string{"company_name": client.CompanyName, "user_id": user.ID})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionClientProvision,
		Resource:   "clients",
		ResourceID: &client.ID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record client provision audit log", zap.Error(err))
	}

	if s.broadcaster != nil {
		err := s.broadcaster.Broadcast(ctx, notify.Event{Type: "client_created", Payload: client})
		if err != nil {
			s.logger.Warn("failed to push client_created event", zap.Error(err))
		}
	}

	return client, nil
}

// Get returns one client. CLIENT callers may only read their own record.
func (s *ClientService) Get(ctx context.Context, id string, actor Actor) (*models.Client, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	if actor.Role == models.RoleClient && client.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "clients may only view their own record")
	}
	return client, nil
}

// GetOwn returns the client record backing the caller's user account.
func (s *ClientService) GetOwn(ctx context.Context, userID string) (*models.Client, error) {
	client, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return client, nil
}

// List returns clients matching the filter.
func (s *ClientService) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, *models.Pagination, error) {
	clients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return clients, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update modifies a client's profile.
func (s *ClientService) Update(ctx context.Context, id string, req UpdateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}

	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}

	if client.CompanyName != req.CompanyName {
		if existing, err := s.repo.GetByCompanyName(ctx, req.CompanyName); err == nil && existing.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "company name already registered")
		}
	}

	client.CompanyName = req.CompanyName
	client.ContactName = req.ContactName
	client.ContactPhone = req.ContactPhone
	client.Industry = req.Industry

	if err := s.repo.Update(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update client")
	}
	return client, nil
}

// Delete removes a client record.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete client")
	}
	return nil
}
