package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/middleware"
	"github.com/winthrop-prehealth/tutor-api/internal/models"
	"github.com/winthrop-prehealth/tutor-api/internal/service"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// RequestCode godoc
// @Summary Request a one-time login code
// @Description Emails a short-lived login code to an authorized administrator
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RequestCodeRequest true "Login request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/request-code [post]
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req models.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	if err := h.service.RequestCode(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "login code sent"}, nil)
}

// VerifyCode godoc
// @Summary Exchange a login code for a session token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.VerifyCodeRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify [post]
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	session, err := h.service.VerifyCode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Logout godoc
// @Summary Revoke the current session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
		return
	}

	if err := h.service.Logout(c.Request.Context(), parts[1]); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "logged out"}, nil)
}

// Me godoc
// @Summary Current session
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	raw, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claims, ok := raw.(*models.SessionClaims)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"email": claims.Email}, nil)
}
