package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/storage"
)

type stubCertificateRepo struct {
	mu    sync.Mutex
	certs map[string]*models.Certificate
	ready chan string
}

func newStubCertificateRepo() *stubCertificateRepo {
	return &stubCertificateRepo{
		certs: map[string]*models.Certificate{},
		ready: make(chan string, 4),
	}
}

func (r *stubCertificateRepo) Create(_ context.Context, cert *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	clone := *cert
	r.certs[cert.ID] = &clone
	return nil
}

func (r *stubCertificateRepo) GetByID(_ context.Context, id string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.certs[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubCertificateRepo) List(_ context.Context, requestedBy string, _, _ int) ([]models.Certificate, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Certificate
	for _, c := range r.certs {
		if requestedBy == "" || c.RequestedBy == requestedBy {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (r *stubCertificateRepo) MarkRendering(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok || c.Status != models.CertificatePending {
		return sql.ErrNoRows
	}
	c.Status = models.CertificateRendering
	return nil
}

func (r *stubCertificateRepo) MarkReady(_ context.Context, id, storagePath string) error {
	r.mu.Lock()
	c := r.certs[id]
	c.Status = models.CertificateReady
	c.StoragePath = &storagePath
	r.mu.Unlock()
	r.ready <- id
	return nil
}

func (r *stubCertificateRepo) MarkFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.certs[id]; ok {
		c.Status = models.CertificateFailed
		c.Error = &reason
	}
	return nil
}

func newCertificateFixture(t *testing.T) (*CertificateService, *stubCertificateRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("cert-test-secret", time.Minute)
	repo := newStubCertificateRepo()
	svc := NewCertificateService(repo, store, signer, nil, zap.NewNop(), 1, 1)
	return svc, repo
}

func waitReady(t *testing.T, repo *stubCertificateRepo) string {
	t.Helper()
	select {
	case id := <-repo.ready:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("certificate was not rendered in time")
		return ""
	}
}

func TestCertificateRequestRendersAsynchronously(t *testing.T) {
	svc, repo := newCertificateFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	cert, err := svc.Request(ctx, "staff-1", CreateCertificateRequest{
		RecipientName: "Jane Doe", ProgramTitle: "Leadership Program",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CertificatePending, cert.Status)

	waitReady(t, repo)

	view, err := svc.Get(ctx, cert.ID, Actor{UserID: "staff-1", Role: models.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, models.CertificateReady, view.Status)
	require.NotNil(t, view.StoragePath)
	assert.True(t, strings.HasPrefix(*view.StoragePath, "certificates/"))
	assert.NotEmpty(t, view.DownloadURL)
}

func TestCertificateRequestValidatesPayload(t *testing.T) {
	svc, _ := newCertificateFixture(t)

	_, err := svc.Request(context.Background(), "staff-1", CreateCertificateRequest{RecipientName: "Jane Doe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCertificateGetHidesOtherUsersRequests(t *testing.T) {
	svc, repo := newCertificateFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	cert, err := svc.Request(ctx, "staff-1", CreateCertificateRequest{
		RecipientName: "Jane Doe", ProgramTitle: "Leadership Program",
	})
	require.NoError(t, err)
	waitReady(t, repo)

	_, err = svc.Get(ctx, cert.ID, Actor{UserID: "staff-2", Role: models.RoleStaff})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	view, err := svc.Get(ctx, cert.ID, Actor{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, cert.ID, view.ID)
}

func TestCertificateListScopesNonAdmins(t *testing.T) {
	svc, repo := newCertificateFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	_, err := svc.Request(ctx, "staff-1", CreateCertificateRequest{RecipientName: "A", ProgramTitle: "P"})
	require.NoError(t, err)
	_, err = svc.Request(ctx, "staff-2", CreateCertificateRequest{RecipientName: "B", ProgramTitle: "P"})
	require.NoError(t, err)
	waitReady(t, repo)
	waitReady(t, repo)

	own, pagination, err := svc.List(ctx, Actor{UserID: "staff-1", Role: models.RoleStaff}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, own, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	all, _, err := svc.List(ctx, Actor{UserID: "admin-1", Role: models.RoleAdmin}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
