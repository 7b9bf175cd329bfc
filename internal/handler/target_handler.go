package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/service"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// TargetHandler handles target endpoints.
type TargetHandler struct {
	service *service.TargetService
}

// NewTargetHandler creates a new target handler.
func NewTargetHandler(svc *service.TargetService) *TargetHandler {
	return &TargetHandler{service: svc}
}

// Create godoc
// @Summary Open a target
// @Description A user holds at most one active target at a time
// @Tags Targets
// @Accept json
// @Produce json
// @Param payload body service.CreateTargetRequest true "Target payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /targets [post]
func (h *TargetHandler) Create(c *gin.Context) {
	var req service.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.service.CreateTarget(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, target)
}

// Get godoc
// @Summary Get a target with its achieved total
// @Tags Targets
// @Produce json
// @Param id path string true "Target ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /targets/{id} [get]
func (h *TargetHandler) Get(c *gin.Context) {
	view, err := h.service.GetTarget(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, view, nil)
}

// ListByUser godoc
// @Summary List a user's targets
// @Tags Targets
// @Produce json
// @Param user_id query string false "User ID (defaults to caller)"
// @Success 200 {object} response.Envelope
// @Router /targets [get]
func (h *TargetHandler) ListByUser(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		userID = claims.UserID
	}

	targets, err := h.service.ListTargets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, targets, nil)
}

// Close godoc
// @Summary Close a target
// @Tags Targets
// @Produce json
// @Param id path string true "Target ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /targets/{id}/close [post]
func (h *TargetHandler) Close(c *gin.Context) {
	if err := h.service.CloseTarget(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Progress godoc
// @Summary List a target's contribution ledger
// @Tags Targets
// @Produce json
// @Param id path string true "Target ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /targets/{id}/progress [get]
func (h *TargetHandler) Progress(c *gin.Context) {
	entries, err := h.service.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}
