package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubClientRepo struct {
	byName map[string]*models.Client
	byID   map[string]*models.Client
}

func newStubClientRepo() *stubClientRepo {
	return &stubClientRepo{byName: map[string]*models.Client{}, byID: map[string]*models.Client{}}
}

func (r *stubClientRepo) Create(_ context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	r.byName[client.CompanyName] = client
	r.byID[client.ID] = client
	return nil
}

func (r *stubClientRepo) GetByID(_ context.Context, id string) (*models.Client, error) {
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubClientRepo) GetByUserID(_ context.Context, userID string) (*models.Client, error) {
	for _, c := range r.byID {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubClientRepo) GetByCompanyName(_ context.Context, name string) (*models.Client, error) {
	if c, ok := r.byName[name]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubClientRepo) List(_ context.Context, _ models.ClientFilter) ([]models.Client, int, error) {
	out := make([]models.Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *stubClientRepo) Update(_ context.Context, client *models.Client) error {
	r.byID[client.ID] = client
	return nil
}

func (r *stubClientRepo) Delete(_ context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

type stubClientUsers struct {
	created []*models.User
	audits  []*models.AuditLog
}

func (r *stubClientUsers) Create(_ context.Context, user *models.User) error {
	r.created = append(r.created, user)
	return nil
}

func (r *stubClientUsers) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

func TestClientCreateProvisionsBackingUser(t *testing.T) {
	repo := newStubClientRepo()
	users := &stubClientUsers{}
	svc := NewClientService(repo, users, nil, nil, zap.NewNop())

	client, err := svc.Create(context.Background(), "admin", CreateClientRequest{
		CompanyName: "Acme Corp", Email: "ops@acme.test", Password: "secret1",
	})
	require.NoError(t, err)
	require.Len(t, users.created, 1)
	assert.Equal(t, models.RoleClient, users.created[0].Role)
	assert.Equal(t, "ops@acme.test", users.created[0].Email)
	assert.Equal(t, users.created[0].ID, client.UserID)
	require.Len(t, users.audits, 1)
	assert.Equal(t, models.AuditActionClientProvision, users.audits[0].Action)
}

func TestClientCreateRejectsDuplicateName(t *testing.T) {
	repo := newStubClientRepo()
	svc := NewClientService(repo, &stubClientUsers{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "admin", CreateClientRequest{CompanyName: "Acme Corp"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "admin", CreateClientRequest{CompanyName: "Acme Corp"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFindOrCreateByNameIsExactAndStable(t *testing.T) {
	repo := newStubClientRepo()
	users := &stubClientUsers{}
	svc := NewClientService(repo, users, nil, nil, zap.NewNop())

	first, created, err := svc.FindOrCreateByName(context.Background(), "staff-1", "Globex")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.FindOrCreateByName(context.Background(), "staff-1", "Globex")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	// Case differs, so a separate client is provisioned.
	other, created, err := svc.FindOrCreateByName(context.Background(), "staff-1", "globex")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	_, _, err = svc.FindOrCreateByName(context.Background(), "staff-1", "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClientGetScopesClientCallers(t *testing.T) {
	repo := newStubClientRepo()
	svc := NewClientService(repo, &stubClientUsers{}, nil, nil, zap.NewNop())

	mine, _, err := svc.FindOrCreateByName(context.Background(), "admin", "Initech")
	require.NoError(t, err)
	theirs, _, err := svc.FindOrCreateByName(context.Background(), "admin", "Hooli")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), theirs.ID, Actor{UserID: mine.UserID, Role: models.RoleClient})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	got, err := svc.Get(context.Background(), mine.ID, Actor{UserID: mine.UserID, Role: models.RoleClient})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
}

func TestClientUpdateRejectsNameCollision(t *testing.T) {
	repo := newStubClientRepo()
	svc := NewClientService(repo, &stubClientUsers{}, nil, nil, zap.NewNop())

	a, _, err := svc.FindOrCreateByName(context.Background(), "admin", "Umbrella")
	require.NoError(t, err)
	_, _, err = svc.FindOrCreateByName(context.Background(), "admin", "Wayne")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), a.ID, UpdateClientRequest{CompanyName: "Wayne"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
