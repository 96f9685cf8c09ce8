package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/gh-Constant/IUT-homework/internal/service"
	appErrors "github.com/gh-Constant/IUT-homework/pkg/errors"
	"github.com/gh-Constant/IUT-homework/pkg/response"
)

// ExportHandler exposes feed exports and their signed downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export the assignment feed
// @Description Renders the current user's feed as CSV or PDF and returns a signed download token
// @Tags Exports
// @Produce json
// @Param format query string true "Export format (csv or pdf)"
// @Param archived query bool false "Export archived assignments instead"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	archived := c.Query("archived") == "true"

	result, err := h.service.Export(c.Request.Context(), claims.Viewer(), format, archived)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a rendered export
// @Description Streams the export referenced by a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	file, relPath, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.FileAttachment(file.Name(), filepath.Base(relPath))
}
