package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tikozap/backend/internal/db"
	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/support"
)

type ImportSummary struct {
	Conversations struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
	} `json:"conversations"`
	Messages struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"messages"`
	Errors []string `json:"errors"`
}

// @Summary Import conversation history
// @Description Upload a messages CSV (tenant_id, conversation_id, role, text, created_at, first_token_ms, used_sse)
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param messages formData file true "messages.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	file, err := c.FormFile("messages")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "messages file required", nil)
		return
	}
	if !validateExt(file.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}
	convs, msgs, errs := parseMessagesCSV(file)
	summary.Conversations.Parsed = len(convs)
	summary.Messages.Parsed = len(msgs)
	summary.Messages.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)
	if len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	convInserted, msgInserted, err := h.Store.ImportConversations(c.Request.Context(), convs, msgs)
	if errors.Is(err, db.ErrTenantMismatch) {
		writeError(c, http.StatusConflict, "TENANT_MISMATCH", "Conversation id already belongs to another tenant", err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to import messages", err.Error())
		return
	}
	summary.Conversations.Inserted = int(convInserted)
	summary.Messages.Inserted = int(msgInserted)
	h.Logger.Info().Int64("conversations", convInserted).Int64("messages", msgInserted).Msg("import finished")
	c.JSON(http.StatusOK, summary)
}

func parseMessagesCSV(file *multipart.FileHeader) ([]models.Conversation, []models.Message, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, nil, []string{err.Error()}
	}
	defer f.Close()
	return readMessagesCSV(f)
}

func readMessagesCSV(r io.Reader) ([]models.Conversation, []models.Message, []string) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	for _, required := range []string{"tenant_id", "conversation_id", "text"} {
		if _, ok := index[required]; !ok {
			return nil, nil, []string{"missing column " + required}
		}
	}

	var (
		errs  []string
		convs []models.Conversation
		msgs  []models.Message
		seen  = map[string]int{}
	)
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		tenant := getFieldAny(rec, index, "tenant_id", "tenant")
		convID := getFieldAny(rec, index, "conversation_id", "conversation")
		text := getFieldAny(rec, index, "text", "message")
		if tenant == "" || convID == "" || text == "" {
			errs = append(errs, fmt.Sprintf("line %d: tenant_id, conversation_id and text are required", line))
			continue
		}

		role := normalizeRole(getFieldAny(rec, index, "role", "author"))
		if role == "" {
			errs = append(errs, fmt.Sprintf("line %d: unknown role %q", line, getField(rec, index, "role")))
			continue
		}

		createdAt := time.Now().UTC()
		if raw := getFieldAny(rec, index, "created_at", "timestamp"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				errs = append(errs, fmt.Sprintf("line %d: created_at must be RFC3339", line))
				continue
			}
			createdAt = t.UTC()
		}

		firstToken, err := parseOptionalFloat(getFieldAny(rec, index, "first_token_ms"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: first_token_ms: %v", line, err))
			continue
		}
		totalMs, err := parseOptionalFloat(getFieldAny(rec, index, "total_ms", "total_response_ms"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: total_ms: %v", line, err))
			continue
		}
		usedSSE, err := parseOptionalBool(getFieldAny(rec, index, "used_sse"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: used_sse: %v", line, err))
			continue
		}
		fallback, err := parseOptionalBool(getFieldAny(rec, index, "fallback_used"))
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: fallback_used: %v", line, err))
			continue
		}

		if i, ok := seen[convID]; ok {
			if convs[i].TenantID != tenant {
				errs = append(errs, fmt.Sprintf("line %d: conversation %s has rows for more than one tenant", line, convID))
				continue
			}
			if createdAt.Before(convs[i].CreatedAt) {
				convs[i].CreatedAt = createdAt
			}
		} else {
			channel := strings.ToLower(getFieldAny(rec, index, "channel"))
			if channel != models.ChannelVoice {
				channel = models.ChannelWidget
			}
			seen[convID] = len(convs)
			convs = append(convs, models.Conversation{
				ID:        convID,
				TenantID:  tenant,
				Channel:   channel,
				Status:    models.StatusOpen,
				CreatedAt: createdAt,
			})
		}

		m := models.Message{
			ID:             uuid.NewString(),
			ConversationID: convID,
			Role:           role,
			Text:           text,
			FirstTokenMs:   firstToken,
			TotalMs:        totalMs,
			UsedSSE:        usedSSE,
			FallbackUsed:   fallback != nil && *fallback,
			CreatedAt:      createdAt,
		}
		switch role {
		case models.RoleCustomer:
			m.Intent = string(support.DetectIntent(text))
		case models.RoleAssistant:
			m.Source = strings.ToLower(getFieldAny(rec, index, "source"))
		}
		msgs = append(msgs, m)
	}
	return convs, msgs, errs
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func normalizeRole(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "customer", "user", "shopper":
		return models.RoleCustomer
	case "assistant", "bot", "ai":
		return models.RoleAssistant
	case "agent", "human", "staff":
		return models.RoleAgent
	default:
		return ""
	}
}

func parseOptionalFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	switch strings.ToLower(raw) {
	case "":
		return nil, nil
	case "1", "true", "yes", "y":
		v := true
		return &v, nil
	case "0", "false", "no", "n":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid boolean %q", raw)
	}
}

func validateExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv"
}
