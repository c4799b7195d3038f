package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// EmailHandler exposes notification and template endpoints.
type EmailHandler struct {
	emails *service.EmailService
}

// NewEmailHandler constructs EmailHandler.
func NewEmailHandler(emails *service.EmailService) *EmailHandler {
	return &EmailHandler{emails: emails}
}

type sendEmailRequest struct {
	StudentIDs []string `json:"student_ids" binding:"required,min=1"`
	TemplateID string   `json:"template_id"`
	Background bool     `json:"background"`
}

// Send godoc
// @Summary Send assignment notifications
// @Description Sends to each listed student, cc'ing their tutors; background queues the work instead
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body sendEmailRequest true "Send payload"
// @Success 200 {object} response.Envelope
// @Router /email/send [post]
func (h *EmailHandler) Send(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if req.Background {
		queued, err := h.emails.QueueAssignmentEmails(req.StudentIDs, req.TemplateID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
		return
	}

	result, err := h.emails.SendBulkAssignmentEmails(c.Request.Context(), req.StudentIDs, req.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Delivery history for one student
// @Tags Email
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/emails [get]
func (h *EmailHandler) History(c *gin.Context) {
	logs, err := h.emails.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// ListTemplates godoc
// @Summary List email templates
// @Tags Email
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /email-templates [get]
func (h *EmailHandler) ListTemplates(c *gin.Context) {
	templates, err := h.emails.ListTemplates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// CreateTemplate godoc
// @Summary Create an email template
// @Tags Email
// @Accept json
// @Produce json
// @Param payload body service.TemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /email-templates [post]
func (h *EmailHandler) CreateTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.emails.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// UpdateTemplate godoc
// @Summary Update an email template
// @Tags Email
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.TemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /email-templates/{id} [put]
func (h *EmailHandler) UpdateTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.emails.UpdateTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// DeleteTemplate godoc
// @Summary Delete an email template
// @Tags Email
// @Produce json
// @Param id path string true "Template ID"
// @Success 204
// @Router /email-templates/{id} [delete]
func (h *EmailHandler) DeleteTemplate(c *gin.Context) {
	if err := h.emails.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
