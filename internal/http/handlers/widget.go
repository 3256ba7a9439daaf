package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tikozap/backend/internal/db"
	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/service"
)

type WidgetMessageRequest struct {
	ConversationID string                  `json:"conversation_id" validate:"omitempty,uuid"`
	Customer       string                  `json:"customer" validate:"max=200"`
	Text           string                  `json:"text" validate:"required,max=4000"`
	Telemetry      *quality.TransportInput `json:"telemetry,omitempty"`
}

// @Summary Send a widget message
// @Description Classifies the message, replies (rule, model or canned), scores the turn and stores everything
// @Tags widget
// @Accept json
// @Produce json
// @Param tenant path string true "Tenant ID"
// @Param payload body WidgetMessageRequest true "Customer message"
// @Success 200 {object} service.TurnResult
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/widget/{tenant}/messages [post]
func (h *Handler) WidgetMessage(c *gin.Context) {
	var req WidgetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	turn := service.Turn{
		TenantID:       c.Param("tenant"),
		ConversationID: req.ConversationID,
		Channel:        models.ChannelWidget,
		Customer:       req.Customer,
		Text:           req.Text,
	}
	if req.Telemetry != nil {
		turn.Transport = *req.Telemetry
	}

	res, err := h.Replies.Handle(c.Request.Context(), turn)
	if err != nil {
		if errors.Is(err, db.ErrTenantMismatch) {
			writeError(c, http.StatusConflict, "TENANT_MISMATCH", "Conversation belongs to another tenant", nil)
			return
		}
		h.Logger.Error().Err(err).Str("tenant_id", turn.TenantID).Msg("widget turn failed")
		writeError(c, http.StatusInternalServerError, "REPLY_ERROR", "Failed to handle message", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}
