package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/support"
)

type SupportReplyRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// @Summary Classify a message and build the canned reply
// @Tags support
// @Accept json
// @Produce json
// @Param payload body SupportReplyRequest true "Customer message"
// @Success 200 {object} support.Reply
// @Failure 400 {object} map[string]any
// @Router /api/support/reply [post]
func (h *Handler) SupportReply(c *gin.Context) {
	var req SupportReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, support.BuildReply(req.Text))
}

// @Summary Evaluate a support turn
// @Description Scores transport and conversation quality and returns grade, reasons and recommendations
// @Tags quality
// @Accept json
// @Produce json
// @Param payload body quality.Input true "Turn telemetry and content"
// @Success 200 {object} quality.Report
// @Failure 400 {object} map[string]any
// @Router /api/quality/evaluate [post]
func (h *Handler) QualityEvaluate(c *gin.Context) {
	var in quality.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(in); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Evaluator.Evaluate(in))
}
