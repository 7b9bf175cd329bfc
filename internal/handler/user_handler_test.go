package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hq/crestline-api/internal/models"
)

func queryContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req, err := http.NewRequest(http.MethodGet, "/users?"+rawQuery, nil)
	require.NoError(t, err)
	c.Request = req
	return c
}

func TestUserFilterFromQuery(t *testing.T) {
	filter := userFilterFromQuery(queryContext(t, "page=3&page_size=50&role=STAFF&active=true&search=jane&sort_by=email&sort_order=desc"))

	assert.Equal(t, 3, filter.Page)
	assert.Equal(t, 50, filter.PageSize)
	require.NotNil(t, filter.Role)
	assert.Equal(t, models.RoleStaff, *filter.Role)
	require.NotNil(t, filter.Active)
	assert.True(t, *filter.Active)
	assert.Equal(t, "jane", filter.Search)
	assert.Equal(t, "email", filter.SortBy)
	assert.Equal(t, "desc", filter.SortOrder)
}

func TestUserFilterFromQueryDefaults(t *testing.T) {
	filter := userFilterFromQuery(queryContext(t, ""))

	assert.Equal(t, 1, filter.Page)
	assert.Equal(t, 20, filter.PageSize)
	assert.Nil(t, filter.Role)
	assert.Nil(t, filter.Active)
}

func TestUserFilterFromQueryIgnoresBadBooleans(t *testing.T) {
	filter := userFilterFromQuery(queryContext(t, "active=banana"))
	assert.Nil(t, filter.Active)
}

func TestUserHandlerDeleteRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/users/u1", nil)
	c.Params = gin.Params{{Key: "id", Value: "u1"}}

	NewUserHandler(nil).Delete(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
