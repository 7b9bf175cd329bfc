package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/crestline-hq/crestline-api/internal/models"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubAuthRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	sessions     map[string]*models.RefreshToken
	audits       []*models.AuditLog
	revokedAll   []string
	lastLogin    map[string]time.Time
}

func newStubAuthRepo(users ...*models.User) *stubAuthRepo {
	r := &stubAuthRepo{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		sessions:     map[string]*models.RefreshToken{},
		lastLogin:    map[string]time.Time{},
	}
	for _, u := range users {
		r.usersByEmail[u.Email] = u
		r.usersByID[u.ID] = u
	}
	return r
}

func (r *stubAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := r.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := r.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubAuthRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	r.lastLogin[id] = ts
	return nil
}

func (r *stubAuthRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	if u, ok := r.usersByID[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (r *stubAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	r.revokedAll = append(r.revokedAll, userID)
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.Revoked = true
		}
	}
	return nil
}

func (r *stubAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.sessions[token.Token] = token
	return nil
}

func (r *stubAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if s, ok := r.sessions[token]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubAuthRepo) RevokeRefreshToken(_ context.Context, id string, at time.Time) error {
	for _, s := range r.sessions {
		if s.ID == id {
			s.Revoked = true
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *stubAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(repo *stubAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "crestline-api",
	})
}

func TestLoginOpensSession(t *testing.T) {
	repo := newStubAuthRepo(&models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashPassword(t, "password"),
		Active: true, Role: models.RoleAdmin,
	})
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	require.Contains(t, repo.sessions, res.RefreshToken)
	assert.Contains(t, repo.lastLogin, "u1")
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	repo := newStubAuthRepo(&models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashPassword(t, "password"),
		Active: true, Role: models.RoleAdmin,
	})
	svc := newAuthService(repo)

	_, badPass := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	_, badUser := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})

	require.Error(t, badPass)
	require.Error(t, badUser)
	assert.Equal(t, appErrors.FromError(badPass).Code, appErrors.FromError(badUser).Code)
	assert.Equal(t, appErrors.FromError(badPass).Message, appErrors.FromError(badUser).Message)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newStubAuthRepo(&models.User{
		ID: "u1", Email: "gone@example.com", PasswordHash: hashPassword(t, "password"),
		Active: false, Role: models.RoleStaff,
	})
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesSession(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@example.com", Active: true, Role: models.RoleAdmin}
	repo := newStubAuthRepo(user)
	repo.sessions["old-token"] = &models.RefreshToken{
		ID: "s1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.sessions["old-token"].Revoked)
	assert.Contains(t, repo.sessions, res.RefreshToken)
}

func TestRefreshRejectsRevokedSession(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@example.com", Active: true, Role: models.RoleAdmin}
	repo := newStubAuthRepo(user)
	repo.sessions["dead"] = &models.RefreshToken{
		ID: "s1", UserID: "u1", Token: "dead", Revoked: true, ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "dead"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordKillsSessions(t *testing.T) {
	user := &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashPassword(t, "old-password"),
		Active: true, Role: models.RoleAdmin,
	}
	repo := newStubAuthRepo(user)
	repo.sessions["live"] = &models.RefreshToken{
		ID: "s1", UserID: "u1", Token: "live", ExpiresAt: time.Now().Add(time.Hour),
	}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "old-password", NewPassword: "brand-new-password",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("brand-new-password")))
	assert.Contains(t, repo.revokedAll, "u1")
	assert.True(t, repo.sessions["live"].Revoked)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	user := &models.User{
		ID: "u1", Email: "admin@example.com", PasswordHash: hashPassword(t, "old-password"),
		Active: true, Role: models.RoleAdmin,
	}
	svc := newAuthService(newStubAuthRepo(user))

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "not-it", NewPassword: "brand-new-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	dept := "dept-1"
	user := &models.User{ID: "u1", Email: "head@example.com", Role: models.RoleDeptHead, DepartmentID: &dept}
	svc := newAuthService(newStubAuthRepo(user))

	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleDeptHead, claims.Role)
	require.NotNil(t, claims.DepartmentID)
	assert.Equal(t, "dept-1", *claims.DepartmentID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	user := &models.User{ID: "u1", Email: "admin@example.com", Role: models.RoleAdmin}
	minting := newAuthService(newStubAuthRepo(user))
	token, _, err := minting.generateAccessToken(user)
	require.NoError(t, err)

	verifying := NewAuthService(newStubAuthRepo(user), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "other-secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour,
	})
	_, err = verifying.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
