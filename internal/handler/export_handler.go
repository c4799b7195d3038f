package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// ExportHandler exposes roster downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Roster godoc
// @Summary Download the roster as CSV or PDF
// @Tags Export
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /export/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	format := service.RosterFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Roster(c.Request.Context(), format)
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(200, result.ContentType, result.Payload)
}
