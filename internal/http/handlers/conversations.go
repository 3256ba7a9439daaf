package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/tikozap/backend/internal/models"
)

// @Summary List conversations
// @Tags conversations
// @Produce json
// @Param tenant_id query string false "Tenant"
// @Param status query string false "OPEN, NEEDS_HUMAN, HUMAN or RESOLVED"
// @Param q query string false "Search conversation id, customer or message text"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/conversations [get]
func (h *Handler) ConversationsList(c *gin.Context) {
	tenant := strings.TrimSpace(c.Query("tenant_id"))
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	q := c.Query("q")
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	items, err := h.Store.ListConversations(c.Request.Context(), tenant, status, q, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list conversations", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Conversation details
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.ConversationDetails
// @Failure 404 {object} map[string]any
// @Router /api/conversations/{id} [get]
func (h *Handler) ConversationDetails(c *gin.Context) {
	result, err := h.Store.GetConversationDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get conversation", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

type HandoffRequest struct {
	Agent  string `json:"agent" validate:"required,max=200"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

// @Summary Hand a conversation to a human agent
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param payload body HandoffRequest true "Agent and reason"
// @Success 200 {object} map[string]any
// @Router /api/conversations/{id}/handoff [post]
func (h *Handler) Handoff(c *gin.Context) {
	id := c.Param("id")
	var req HandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if err := h.Store.Handoff(c.Request.Context(), id, req.Agent, req.Reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to hand off", err.Error())
		return
	}
	h.Logger.Info().Str("conversation_id", id).Str("agent", req.Agent).Msg("conversation handed off")
	c.JSON(http.StatusOK, gin.H{"status": models.StatusHuman})
}

// @Summary Resolve a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]any
// @Router /api/conversations/{id}/resolve [post]
func (h *Handler) ResolveConversation(c *gin.Context) {
	if err := h.Store.SetConversationStatus(c.Request.Context(), c.Param("id"), models.StatusResolved); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to resolve", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusResolved})
}

// @Summary List quality reports
// @Tags quality
// @Produce json
// @Param tenant_id query string false "Tenant"
// @Param grade query string false "A, B, C or D"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/quality/reports [get]
func (h *Handler) QualityReports(c *gin.Context) {
	tenant := strings.TrimSpace(c.Query("tenant_id"))
	grade := strings.ToUpper(strings.TrimSpace(c.Query("grade")))
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	items, err := h.Store.ListQualityReports(c.Request.Context(), tenant, grade, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list reports", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Quality summary
// @Tags quality
// @Produce json
// @Param tenant_id query string false "Tenant"
// @Success 200 {object} models.QualitySummary
// @Router /api/quality/summary [get]
func (h *Handler) QualitySummary(c *gin.Context) {
	summary, err := h.Store.QualitySummary(c.Request.Context(), strings.TrimSpace(c.Query("tenant_id")))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to summarize reports", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}
