package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/crestline-hq/crestline-api/internal/middleware"
	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/service"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// authRepoStub satisfies the auth service's repository needs with a single
// in-memory account.
type authRepoStub struct {
	user     *models.User
	sessions map[string]*models.RefreshToken
}

func (r *authRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (r *authRepoStub) UpdatePassword(context.Context, string, string, time.Time) error { return nil }

func (r *authRepoStub) RevokeUserRefreshTokens(context.Context, string) error { return nil }

func (r *authRepoStub) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if r.sessions == nil {
		r.sessions = map[string]*models.RefreshToken{}
	}
	r.sessions[token.Token] = token
	return nil
}

func (r *authRepoStub) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if s, ok := r.sessions[token]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) RevokeRefreshToken(context.Context, string, time.Time) error { return nil }

func (r *authRepoStub) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

func newAuthTestHandler(t *testing.T, password string) (*AuthHandler, *authRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &authRepoStub{user: &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: string(hash),
		FullName: "Admin", Role: models.RoleAdmin, Active: true,
	}}
	svc := service.NewAuthService(repo, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret:  "handler-test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
	return NewAuthHandler(svc), repo
}

func postJSON(t *testing.T, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	h, repo := newAuthTestHandler(t, "password")
	w, c := postJSON(t, models.LoginRequest{Email: "admin@example.com", Password: "password"})

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Contains(t, repo.sessions, envelope.Data.RefreshToken)
	assert.Equal(t, "admin@example.com", envelope.Data.User.Email)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	h, _ := newAuthTestHandler(t, "password")
	w, c := postJSON(t, models.LoginRequest{Email: "admin@example.com", Password: "nope"})

	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	h, _ := newAuthTestHandler(t, "password")
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMeRequiresClaims(t *testing.T) {
	h, _ := newAuthTestHandler(t, "password")
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)

	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMeReturnsClaims(t *testing.T) {
	h, _ := newAuthTestHandler(t, "password")
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	dept := "d1"
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "u1", Email: "admin@example.com", Role: models.RoleAdmin, DepartmentID: &dept,
	})

	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
}
