package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// AssignmentHandler exposes tutor assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type assignRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	TutorEmail string `json:"tutor_email" binding:"required,email"`
}

type removeRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// AssignRT godoc
// @Summary Assign a resident tutor to a student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body assignRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/assign-rt [post]
func (h *AssignmentHandler) AssignRT(c *gin.Context) {
	h.assign(c, models.TutorKindRT)
}

// AssignNRT godoc
// @Summary Assign a non-resident tutor to a student
// @Description Fails when the tutor is not accepting students or already has three assigned
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body assignRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assignments/assign-nrt [post]
func (h *AssignmentHandler) AssignNRT(c *gin.Context) {
	h.assign(c, models.TutorKindNRT)
}

// RemoveRT godoc
// @Summary Remove a student's resident tutor assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body removeRequest true "Removal payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/remove-rt [post]
func (h *AssignmentHandler) RemoveRT(c *gin.Context) {
	h.remove(c, models.TutorKindRT)
}

// RemoveNRT godoc
// @Summary Remove a student's non-resident tutor assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body removeRequest true "Removal payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/remove-nrt [post]
func (h *AssignmentHandler) RemoveNRT(c *gin.Context) {
	h.remove(c, models.TutorKindNRT)
}

func (h *AssignmentHandler) assign(c *gin.Context, kind models.TutorKind) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.assignments.AssignTutor(c.Request.Context(), req.StudentID, req.TutorEmail, kind); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "tutor assigned"}, nil)
}

func (h *AssignmentHandler) remove(c *gin.Context, kind models.TutorKind) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.assignments.RemoveTutor(c.Request.Context(), req.StudentID, kind); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "assignment removed"}, nil)
}
