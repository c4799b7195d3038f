package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// RTHandler exposes resident tutor endpoints.
type RTHandler struct {
	tutors *service.RTService
}

// NewRTHandler constructs RTHandler.
func NewRTHandler(tutors *service.RTService) *RTHandler {
	return &RTHandler{tutors: tutors}
}

// List godoc
// @Summary List resident tutors with student counts
// @Tags ResidentTutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rts [get]
func (h *RTHandler) List(c *gin.Context) {
	tutors, err := h.tutors.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, nil)
}

// Get godoc
// @Summary Get resident tutor detail
// @Tags ResidentTutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /rts/{id} [get]
func (h *RTHandler) Get(c *gin.Context) {
	tutor, err := h.tutors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Create godoc
// @Summary Create resident tutor
// @Tags ResidentTutors
// @Accept json
// @Produce json
// @Param payload body service.CreateRTRequest true "Tutor payload"
// @Success 201 {object} response.Envelope
// @Router /rts [post]
func (h *RTHandler) Create(c *gin.Context) {
	var req service.CreateRTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tutor, err := h.tutors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tutor)
}

// Update godoc
// @Summary Update resident tutor
// @Tags ResidentTutors
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Param payload body service.CreateRTRequest true "Tutor payload"
// @Success 200 {object} response.Envelope
// @Router /rts/{id} [put]
func (h *RTHandler) Update(c *gin.Context) {
	var req service.CreateRTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tutor, err := h.tutors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Delete godoc
// @Summary Delete resident tutor
// @Tags ResidentTutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /rts/{id} [delete]
func (h *RTHandler) Delete(c *gin.Context) {
	deleted, err := h.tutors.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deleted, nil)
}
