package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go/twiml"

	"github.com/tikozap/backend/internal/db"
	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/service"
	"github.com/tikozap/backend/internal/utils"
	"github.com/tikozap/backend/internal/voice"
)

const (
	voiceGreeting    = "Hi, thanks for calling. How can I help you today?"
	voiceErrorReply  = "Sorry, something went wrong. Please try again later."
	twilioSigHeader  = "X-Twilio-Signature"
	maxWebhookBodyMB = 1
)

// @Summary Twilio voice webhook
// @Description Accepts Gather results and Voice Insights callbacks (form or JSON) and answers with TwiML
// @Tags voice
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce xml
// @Param tenant path string true "Tenant ID"
// @Param X-Twilio-Signature header string false "Required when TWILIO_AUTH_TOKEN is set"
// @Success 200 {string} string "TwiML"
// @Failure 403 {object} map[string]any
// @Router /api/voice/{tenant}/webhook [post]
func (h *Handler) VoiceWebhook(c *gin.Context) {
	tenant := c.Param("tenant")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyMB<<20))
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read webhook body", err.Error())
		return
	}
	isJSON := strings.HasPrefix(c.ContentType(), "application/json")
	if !h.validTwilioSignature(c, body, isJSON) {
		h.Logger.Warn().Str("tenant_id", tenant).Msg("rejected voice webhook with bad signature")
		writeError(c, http.StatusForbidden, "INVALID_SIGNATURE", "Webhook signature check failed", nil)
		return
	}

	ev, err := readVoiceEvent(body, isJSON)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid webhook payload", err.Error())
		return
	}
	action := strings.TrimRight(h.PublicURL, "/") + "/api/voice/" + tenant + "/webhook"

	if ev.Transcript == "" {
		if ev.Metrics == nil {
			h.writeTwiML(c, voice.BuildResponse(voiceGreeting, false, action, ""))
			return
		}
		h.Logger.Info().Str("tenant_id", tenant).Str("call_sid", ev.CallSID).Str("shape", ev.Shape).
			Msg("voice metrics callback")
		h.writeTwiML(c, nil)
		return
	}

	ctx := c.Request.Context()
	dedupeKey := ""
	if h.Dedupe != nil && ev.CallSID != "" {
		key := utils.DedupeKey(ev.CallSID, ev.Transcript)
		seen, err := h.Dedupe.Seen(ctx, key)
		switch {
		case err != nil:
			h.Logger.Warn().Err(err).Str("call_sid", ev.CallSID).Msg("dedupe check failed")
		case seen:
			h.Logger.Info().Str("call_sid", ev.CallSID).Msg("duplicate voice delivery")
			h.writeTwiML(c, nil)
			return
		default:
			dedupeKey = key
		}
	}

	turn := service.Turn{
		TenantID:    tenant,
		Channel:     models.ChannelVoice,
		ExternalRef: ev.CallSID,
		Customer:    ev.From,
		Text:        ev.Transcript,
		Transport:   quality.TransportInput{Twilio: ev.Metrics},
	}
	if ev.CallSID != "" {
		turn.ConversationID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(tenant+":"+ev.CallSID)).String()
	}

	res, err := h.Replies.Handle(ctx, turn)
	if err != nil {
		if dedupeKey != "" {
			if ferr := h.Dedupe.Forget(ctx, dedupeKey); ferr != nil {
				h.Logger.Warn().Err(ferr).Str("call_sid", ev.CallSID).Msg("failed to release dedupe key")
			}
		}
		if errors.Is(err, db.ErrTenantMismatch) {
			writeError(c, http.StatusConflict, "TENANT_MISMATCH", "Call belongs to another tenant", nil)
			return
		}
		h.Logger.Error().Err(err).Str("call_sid", ev.CallSID).Msg("voice turn failed")
		h.writeTwiML(c, voice.BuildResponse(voiceErrorReply, true, "", h.VoiceHandoff))
		return
	}
	h.writeTwiML(c, voice.BuildResponse(res.Reply.Text, res.Reply.NeedsHuman, action, h.VoiceHandoff))
}

// validTwilioSignature checks X-Twilio-Signature against the public URL
// Twilio called. Without a configured validator every request passes.
func (h *Handler) validTwilioSignature(c *gin.Context, body []byte, isJSON bool) bool {
	if h.Signatures == nil {
		return true
	}
	sig := c.GetHeader(twilioSigHeader)
	if sig == "" {
		return false
	}
	fullURL := webhookURL(c, h.PublicURL)
	if isJSON {
		return h.Signatures.ValidateBody(fullURL, body, sig)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return false
	}
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return h.Signatures.Validate(fullURL, params, sig)
}

func webhookURL(c *gin.Context, publicURL string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		scheme := "https"
		if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") == "http" {
			scheme = "http"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + c.Request.URL.RequestURI()
}

func readVoiceEvent(body []byte, isJSON bool) (voice.Event, error) {
	if isJSON {
		var payload map[string]any
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return voice.Event{}, err
		}
		return voice.Normalize(payload), nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return voice.Event{}, err
	}
	return voice.Normalize(voice.FromForm(values)), nil
}

func (h *Handler) writeTwiML(c *gin.Context, verbs []twiml.Element) {
	body, err := voice.Render(verbs)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "TWIML_ERROR", "Failed to render response", err.Error())
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}
