package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/service"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
	"github.com/crestline-hq/crestline-api/pkg/storage"
)

// NotificationHandler handles messaging endpoints.
type NotificationHandler struct {
	service *service.NotificationService
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *service.NotificationService, store *storage.LocalStorage, signer *storage.SignedURLSigner) *NotificationHandler {
	return &NotificationHandler{service: svc, storage: store, signer: signer}
}

// attachmentView is an attachment plus the signed token URL that the file
// proxy accepts.
type attachmentView struct {
	models.NotificationAttachment
	DownloadURL string `json:"download_url,omitempty"`
}

func (h *NotificationHandler) attachmentView(att models.NotificationAttachment) attachmentView {
	view := attachmentView{NotificationAttachment: att}
	if h.signer == nil {
		return view
	}
	token, _, err := h.signer.Generate(att.ID, att.StoragePath)
	if err == nil {
		view.DownloadURL = "/api/v1/files/download?token=" + token
	}
	return view
}

// Send godoc
// @Summary Send a notification
// @Description Send a notification to everyone, a role, or explicit users
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body service.SendNotificationRequest true "Notification payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	n, err := h.service.Send(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, n)
}

// Inbox godoc
// @Summary List inbox
// @Description List the caller's notifications with read and acknowledge state
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Unread only"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.NotificationFilter
	if unread, err := strconv.ParseBool(c.DefaultQuery("unread", "false")); err == nil {
		filter.UnreadOnly = unread
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	items, pagination, err := h.service.Inbox(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"unread": count}, nil)
}

// Thread godoc
// @Summary Get a notification thread
// @Description Get a root notification and its replies
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/thread [get]
func (h *NotificationHandler) Thread(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	thread, err := h.service.GetThread(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, thread, nil)
}

// Reply godoc
// @Summary Reply within a thread
// @Tags Notifications
// @Accept json
// @Produce json
// @Param id path string true "Notification ID"
// @Param payload body service.ReplyRequest true "Reply payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notifications/{id}/reply [post]
func (h *NotificationHandler) Reply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	reply, err := h.service.Reply(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, reply)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Acknowledge godoc
// @Summary Acknowledge a notification
// @Description Stamp the delivery once; repeats return the original timestamp
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/acknowledge [post]
func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rec, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rec, nil)
}

// UploadAttachment godoc
// @Summary Attach a file to a notification
// @Tags Notifications
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Notification ID"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notifications/{id}/attachments [post]
func (h *NotificationHandler) UploadAttachment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer src.Close()

	relPath := fmt.Sprintf("attachments/%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename))
	if _, err := h.storage.SaveStream(relPath, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to store upload"))
		return
	}

	att := &models.NotificationAttachment{
		Filename:    fileHeader.Filename,
		SizeBytes:   fileHeader.Size,
		StoragePath: relPath,
	}
	if err := h.service.AddAttachment(c.Request.Context(), c.Param("id"), claims.UserID, att); err != nil {
		// The row failed; remove the orphaned file.
		_ = h.storage.Delete(relPath)
		response.Error(c, err)
		return
	}

	response.Created(c, h.attachmentView(*att))
}

// ListAttachments godoc
// @Summary List notification attachments
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notifications/{id}/attachments [get]
func (h *NotificationHandler) ListAttachments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	atts, err := h.service.Attachments(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]attachmentView, 0, len(atts))
	for _, att := range atts {
		views = append(views, h.attachmentView(att))
	}
	response.JSON(c, http.StatusOK, views, nil)
}
