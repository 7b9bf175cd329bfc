package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/service"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// PartnerHandler handles partner organization endpoints.
type PartnerHandler struct {
	service *service.PartnerService
}

// NewPartnerHandler creates a new partner handler.
func NewPartnerHandler(svc *service.PartnerService) *PartnerHandler {
	return &PartnerHandler{service: svc}
}

// Create godoc
// @Summary Create a partner
// @Tags Partners
// @Accept json
// @Produce json
// @Param payload body service.PartnerRequest true "Partner payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /partners [post]
func (h *PartnerHandler) Create(c *gin.Context) {
	var req service.PartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	partner, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, partner)
}

// List godoc
// @Summary List partners
// @Tags Partners
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /partners [get]
func (h *PartnerHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	partners, pagination, err := h.service.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, partners, pagination)
}

// Get godoc
// @Summary Get a partner
// @Tags Partners
// @Produce json
// @Param id path string true "Partner ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /partners/{id} [get]
func (h *PartnerHandler) Get(c *gin.Context) {
	partner, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, partner, nil)
}

// Update godoc
// @Summary Update a partner
// @Tags Partners
// @Accept json
// @Produce json
// @Param id path string true "Partner ID"
// @Param payload body service.PartnerRequest true "Partner payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /partners/{id} [put]
func (h *PartnerHandler) Update(c *gin.Context) {
	var req service.PartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	partner, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, partner, nil)
}

// Delete godoc
// @Summary Delete a partner
// @Tags Partners
// @Produce json
// @Param id path string true "Partner ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /partners/{id} [delete]
func (h *PartnerHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
