package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winthrop-prehealth/tutor-api/internal/service"
	"github.com/winthrop-prehealth/tutor-api/pkg/response"
)

// MatchHandler exposes the matcher over the live rosters.
type MatchHandler struct {
	suggestions *service.SuggestionService
}

// NewMatchHandler constructs MatchHandler.
func NewMatchHandler(suggestions *service.SuggestionService) *MatchHandler {
	return &MatchHandler{suggestions: suggestions}
}

// Suggestions godoc
// @Summary Suggest tutor assignments for unassigned students
// @Description Scores every unassigned student against every eligible tutor and proposes at most one tutor per student
// @Tags Matching
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /match/suggestions [get]
func (h *MatchHandler) Suggestions(c *gin.Context) {
	pairs, err := h.suggestions.Suggest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pairs, nil)
}
