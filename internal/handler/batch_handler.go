package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// BatchHandler exposes the guided batch-update workflow.
type BatchHandler struct {
	batches *service.BatchWorkflowService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches *service.BatchWorkflowService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Start godoc
// @Summary Start a batch-update session
// @Tags Batch
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /batch [post]
func (h *BatchHandler) Start(c *gin.Context) {
	session := h.batches.StartSession()
	response.Created(c, session)
}

// Get godoc
// @Summary Get batch session state
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	session, err := h.batches.Session(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Confirm godoc
// @Summary Confirm the current stage and advance
// @Description Records the stage's contribution and moves the session forward
// @Tags Batch
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.StageInput true "Stage contribution"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/confirm [post]
func (h *BatchHandler) Confirm(c *gin.Context) {
	var input service.StageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.batches.Confirm(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Back godoc
// @Summary Step back to the previous stage
// @Description Discards the previous stage's staged contribution so it can be re-entered
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/back [post]
func (h *BatchHandler) Back(c *gin.Context) {
	session, err := h.batches.Back(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Abandon godoc
// @Summary Abandon a batch session
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 204
// @Router /batch/{id} [delete]
func (h *BatchHandler) Abandon(c *gin.Context) {
	if err := h.batches.Abandon(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Commit godoc
// @Summary Commit the staged batch
// @Description Applies all staged changes in order; per-item failures become warnings, insert failures abort
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/commit [post]
func (h *BatchHandler) Commit(c *gin.Context) {
	result, err := h.batches.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Board godoc
// @Summary Get the assignment board for the current assign stage
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/board [get]
func (h *BatchHandler) Board(c *gin.Context) {
	board, err := h.batches.Board(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Suggestions godoc
// @Summary List pending match suggestions for the session
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/suggestions [get]
func (h *BatchHandler) Suggestions(c *gin.Context) {
	pairs, err := h.batches.Suggestions(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pairs, nil)
}

// AcceptSuggestion godoc
// @Summary Accept a pending suggestion
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/suggestions/{studentId}/accept [post]
func (h *BatchHandler) AcceptSuggestion(c *gin.Context) {
	if err := h.batches.AcceptSuggestion(c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "suggestion accepted"}, nil)
}

// RejectSuggestion godoc
// @Summary Reject a pending suggestion
// @Description Removes the suggestion; the student stays in the unassigned pool
// @Tags Batch
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /batch/{id}/suggestions/{studentId}/reject [post]
func (h *BatchHandler) RejectSuggestion(c *gin.Context) {
	if err := h.batches.RejectSuggestion(c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "suggestion rejected"}, nil)
}

type moveRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	TutorID   string `json:"tutor_id"`
}

// Move godoc
// @Summary Move a student on the assignment board
// @Description An empty tutor_id returns the student to the unassigned pool
// @Tags Batch
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body moveRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /batch/{id}/move [post]
func (h *BatchHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.batches.MoveStudent(c.Param("id"), req.StudentID, req.TutorID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "student moved"}, nil)
}
