package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator calls an internal reply service at BaseURL/reply.
type HTTPGenerator struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	TenantID       string        `json:"tenant_id"`
	ConversationID string        `json:"conversation_id"`
	Message        string        `json:"message"`
	History        []ChatMessage `json:"history,omitempty"`
}

type responseBody struct {
	Reply        string `json:"reply"`
	ModelVersion string `json:"model_version"`
}

func (h HTTPGenerator) Reply(ctx context.Context, r ReplyRequest) (ReplyResult, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		TenantID:       r.TenantID,
		ConversationID: r.ConversationID,
		Message:        r.Text,
		History:        r.History,
	}
	b, _ := json.Marshal(payload)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.BaseURL, "/")+"/reply", bytes.NewBuffer(b))
	if err != nil {
		return ReplyResult{}, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return ReplyResult{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ReplyResult{}, time.Since(start).Milliseconds(), errors.New("reply service error")
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ReplyResult{}, time.Since(start).Milliseconds(), err
	}
	if strings.TrimSpace(out.Reply) == "" {
		return ReplyResult{}, time.Since(start).Milliseconds(), errors.New("empty reply")
	}
	return ReplyResult{Text: out.Reply, ModelVersion: out.ModelVersion}, time.Since(start).Milliseconds(), nil
}
