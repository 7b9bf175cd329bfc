package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/service"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

// LedgerHandler handles petty-cash ledger endpoints.
type LedgerHandler struct {
	service   *service.LedgerService
	approvals *service.ApprovalService
	exports   *service.ExportService
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(svc *service.LedgerService, approvals *service.ApprovalService, exports *service.ExportService) *LedgerHandler {
	return &LedgerHandler{service: svc, approvals: approvals, exports: exports}
}

// Create godoc
// @Summary Open a petty-cash ledger
// @Tags Ledgers
// @Accept json
// @Produce json
// @Param payload body service.CreateLedgerRequest true "Ledger payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ledgers [post]
func (h *LedgerHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	ledger, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, ledger)
}

// List godoc
// @Summary List petty-cash ledgers
// @Tags Ledgers
// @Produce json
// @Param department_id query string false "Department filter"
// @Param status query string false "Approval status filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /ledgers [get]
func (h *LedgerHandler) List(c *gin.Context) {
	var filter models.LedgerFilter
	filter.DepartmentID = c.Query("department_id")
	filter.Status = models.ApprovalStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	ledgers, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ledgers, pagination)
}

// Get godoc
// @Summary Get a petty-cash ledger
// @Tags Ledgers
// @Produce json
// @Param id path string true "Ledger ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledgers/{id} [get]
func (h *LedgerHandler) Get(c *gin.Context) {
	ledger, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, ledger, nil)
}

// AddTransaction godoc
// @Summary Append a ledger transaction
// @Description Record a deposit or withdrawal; locked ledgers refuse new lines
// @Tags Ledgers
// @Accept json
// @Produce json
// @Param id path string true "Ledger ID"
// @Param payload body service.AddTransactionRequest true "Transaction payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ledgers/{id}/transactions [post]
func (h *LedgerHandler) AddTransaction(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AddTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	line, err := h.service.AddTransaction(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, line)
}

// Transactions godoc
// @Summary List ledger transactions
// @Description Transaction lines in insertion order with running balances
// @Tags Ledgers
// @Produce json
// @Param id path string true "Ledger ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledgers/{id}/transactions [get]
func (h *LedgerHandler) Transactions(c *gin.Context) {
	lines, err := h.service.Transactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lines, nil)
}

// Export godoc
// @Summary Export a ledger statement
// @Description Download the full transaction history as CSV or PDF
// @Tags Ledgers
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Ledger ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /ledgers/{id}/export [get]
func (h *LedgerHandler) Export(c *gin.Context) {
	file, err := h.exports.LedgerStatement(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Decide godoc
// @Summary Decide a ledger approval stage
// @Description Approve or reject the pending stage of the two-stage flow
// @Tags Ledgers
// @Accept json
// @Produce json
// @Param id path string true "Ledger ID"
// @Param payload body service.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ledgers/{id}/decision [post]
func (h *LedgerHandler) Decide(c *gin.Context) {
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

	result, err := h.approvals.Decide(c.Request.Context(), service.ApprovalKindLedger, c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
