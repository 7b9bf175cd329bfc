package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/service"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// AssetHandler handles fixed-asset endpoints.
type AssetHandler struct {
	service   *service.AssetService
	approvals *service.ApprovalService
}

// NewAssetHandler creates a new asset handler.
func NewAssetHandler(svc *service.AssetService, approvals *service.ApprovalService) *AssetHandler {
	return &AssetHandler{service: svc, approvals: approvals}
}

// Create godoc
// @Summary Register a fixed asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param payload body service.CreateAssetRequest true "Asset payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	asset, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, asset)
}

// List godoc
// @Summary List fixed assets
// @Tags Assets
// @Produce json
// @Param department_id query string false "Department filter"
// @Param status query string false "Approval status filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	var filter models.AssetFilter
	filter.DepartmentID = c.Query("department_id")
	filter.Status = models.ApprovalStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	assets, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assets, pagination)
}

// Get godoc
// @Summary Get a fixed asset
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, asset, nil)
}

// Depreciation godoc
// @Summary Get asset depreciation
// @Description Current computed value plus stored snapshot history
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Param as_of query string false "Valuation date (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assets/{id}/depreciation [get]
func (h *AssetHandler) Depreciation(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "as_of must be RFC 3339"))
			return
		}
		asOf = parsed
	}

	view, err := h.service.Depreciation(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// Decide godoc
// @Summary Decide an asset approval stage
// @Description Approve or reject the pending stage of the two-stage flow
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body service.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assets/{id}/decision [post]
func (h *AssetHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.approvals.Decide(c.Request.Context(), service.ApprovalKindAsset, c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
