package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// NRTHandler exposes non-resident tutor endpoints.
type NRTHandler struct {
	tutors *service.NRTService
}

// NewNRTHandler constructs NRTHandler.
func NewNRTHandler(tutors *service.NRTService) *NRTHandler {
	return &NRTHandler{tutors: tutors}
}

// List godoc
// @Summary List non-resident tutors with student counts
// @Tags NonResidentTutors
// @Produce json
// @Param search query string false "Search by name or email"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /nrts [get]
func (h *NRTHandler) List(c *gin.Context) {
	var filter models.TutorFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = models.NRTStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	tutors, pagination, err := h.tutors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, pagination)
}

// Get godoc
// @Summary Get non-resident tutor detail
// @Tags NonResidentTutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /nrts/{id} [get]
func (h *NRTHandler) Get(c *gin.Context) {
	tutor, err := h.tutors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Create godoc
// @Summary Create non-resident tutor
// @Tags NonResidentTutors
// @Accept json
// @Produce json
// @Param payload body service.CreateNRTRequest true "Tutor payload"
// @Success 201 {object} response.Envelope
// @Router /nrts [post]
func (h *NRTHandler) Create(c *gin.Context) {
	var req service.CreateNRTRequest
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
// @Summary Update non-resident tutor
// @Tags NonResidentTutors
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Param payload body service.CreateNRTRequest true "Tutor payload"
// @Success 200 {object} response.Envelope
// @Router /nrts/{id} [put]
func (h *NRTHandler) Update(c *gin.Context) {
	var req service.CreateNRTRequest
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

type updateNRTStatusRequest struct {
	Status models.NRTStatus `json:"status" binding:"required"`
}

// UpdateStatus godoc
// @Summary Update a non-resident tutor's intake status
// @Tags NonResidentTutors
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Param payload body updateNRTStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /nrts/{id}/status [patch]
func (h *NRTHandler) UpdateStatus(c *gin.Context) {
	var req updateNRTStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tutor, err := h.tutors.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Delete godoc
// @Summary Delete non-resident tutor
// @Tags NonResidentTutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /nrts/{id} [delete]
func (h *NRTHandler) Delete(c *gin.Context) {
	deleted, err := h.tutors.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deleted, nil)
}

// BulkAdd godoc
// @Summary Bulk add non-resident tutors
// @Tags NonResidentTutors
// @Accept json
// @Produce json
// @Param payload body []service.CreateNRTRequest true "Tutor rows"
// @Success 200 {object} response.Envelope
// @Router /nrts/bulk [post]
func (h *NRTHandler) BulkAdd(c *gin.Context) {
	var rows []service.CreateNRTRequest
	if err := c.ShouldBindJSON(&rows); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.tutors.BulkAdd(c.Request.Context(), rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
