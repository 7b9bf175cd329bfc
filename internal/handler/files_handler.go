package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
	"github.com/crestline-hq/crestline-api/pkg/storage"
)

// FilesHandler serves stored files through signed download tokens.
type FilesHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *FilesHandler {
	return &FilesHandler{storage: store, signer: signer}
}

// Download godoc
// @Summary Download a stored file
// @Description Serve a file referenced by a signed, time-limited token
// @Tags Files
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/download [get]
func (h *FilesHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	file.Close()

	c.FileAttachment(h.storage.Path(relPath), filepath.Base(relPath))
}
