package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// SyncHandler exposes the spreadsheet mirror endpoints.
type SyncHandler struct {
	sync *service.SheetsSyncService
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(sync *service.SheetsSyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

type syncRequest struct {
	Force bool `json:"force"`
}

// ToSheets godoc
// @Summary Export the roster to the spreadsheet mirror
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body syncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sync/to-sheets [post]
func (h *SyncHandler) ToSheets(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.sync.Export(c.Request.Context(), req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// FromSheets godoc
// @Summary Import the roster from the spreadsheet mirror
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body syncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sync/from-sheets [post]
func (h *SyncHandler) FromSheets(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	result, err := h.sync.Import(c.Request.Context(), req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Spreadsheet sync status
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
