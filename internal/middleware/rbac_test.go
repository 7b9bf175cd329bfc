package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/crestline-hq/crestline-api/internal/models"
)

func rbacRequest(t *testing.T, guard gin.HandlerFunc, claims *models.JWTClaims, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if claims != nil {
		r.Use(func(c *gin.Context) { c.Set(ContextUserKey, claims) })
	}
	r.GET("/users/:id", guard, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}
	w := rbacRequest(t, RBAC("ADMIN"), claims, "/users/other")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}
	w := rbacRequest(t, RBAC("ADMIN"), claims, "/users/other")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	w := rbacRequest(t, RBAC("ADMIN"), nil, "/users/other")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRBACSelfAccessMatchesPathParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}

	w := rbacRequest(t, RBAC("ADMIN", SelfAccess), claims, "/users/u1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = rbacRequest(t, RBAC("ADMIN", SelfAccess), claims, "/users/u2")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfAccessNeedsUserID(t *testing.T) {
	// Empty claim IDs must not self-match an empty path parameter.
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/users", nil)
	c.Set(ContextUserKey, &models.JWTClaims{Role: models.RoleStaff})
	c.Params = gin.Params{{Key: "id", Value: ""}}

	RBAC(SelfAccess)(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWrapsTypedRoles(t *testing.T) {
	claims := &models.JWTClaims{UserID: "c1", Role: models.RoleClient}
	w := rbacRequest(t, RequireRoles(models.RoleClient), claims, "/users/any")
	assert.Equal(t, http.StatusOK, w.Code)
}
