package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const systemPrompt = "You are a friendly e-commerce support assistant. Answer in at most three sentences. " +
	"If you are unsure, say a teammate can take over. Never invent order details."

// OpenAICompatGenerator talks to any /chat/completions compatible endpoint.
type OpenAICompatGenerator struct {
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Client    *http.Client
}

var (
	cacheMu    sync.Mutex
	cacheStore = map[string]cacheEntry{}
	cacheTTL   = 60 * time.Second
)

type cacheEntry struct {
	value string
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

func (a OpenAICompatGenerator) Reply(ctx context.Context, r ReplyRequest) (ReplyResult, int64, error) {
	start := time.Now()
	if strings.TrimSpace(a.BaseURL) == "" {
		return ReplyResult{}, 0, fmt.Errorf("ASSISTANT_BASE_URL is not set")
	}
	if strings.TrimSpace(a.Model) == "" {
		return ReplyResult{}, 0, fmt.Errorf("ASSISTANT_MODEL is not set")
	}

	key := cacheKey(r)
	if v, ok := cacheGet(key); ok {
		return ReplyResult{Text: v, ModelVersion: a.Model}, time.Since(start).Milliseconds(), nil
	}

	payload := struct {
		Model       string        `json:"model"`
		Temperature float64       `json:"temperature,omitempty"`
		MaxTokens   int           `json:"max_tokens,omitempty"`
		Messages    []ChatMessage `json:"messages"`
	}{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		Messages:  []ChatMessage{{Role: "system", Content: systemPrompt}},
	}
	payload.Messages = append(payload.Messages, r.History...)
	payload.Messages = append(payload.Messages, ChatMessage{Role: "user", Content: r.Text})

	b, _ := json.Marshal(payload)
	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return ReplyResult{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(a.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	client := a.Client
	if client == nil {
		timeout := 45 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		if errors.Is(err, context.DeadlineExceeded) {
			return ReplyResult{}, elapsed, fmt.Errorf("assistant request timed out")
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ReplyResult{}, elapsed, fmt.Errorf("assistant request timed out")
		}
		return ReplyResult{}, elapsed, fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		elapsed := time.Since(start).Milliseconds()
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return ReplyResult{}, elapsed, RateLimitError{RetryAfter: extractRetryAfter(errBody)}
		}
		return ReplyResult{}, elapsed, fmt.Errorf("assistant http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return ReplyResult{}, time.Since(start).Milliseconds(), err
	}
	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Message.Content) == "" {
		return ReplyResult{}, time.Since(start).Milliseconds(), fmt.Errorf("empty assistant response")
	}
	answer := strings.TrimSpace(res.Choices[0].Message.Content)
	cacheSet(key, answer)

	version := res.Model
	if version == "" {
		version = a.Model
	}
	return ReplyResult{Text: answer, ModelVersion: version}, time.Since(start).Milliseconds(), nil
}

// Replies only repeat within a tenant when the question has no history.
func cacheKey(r ReplyRequest) string {
	if len(r.History) > 0 {
		return ""
	}
	return r.TenantID + "\x00" + strings.ToLower(strings.TrimSpace(r.Text))
}

func cacheGet(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cacheStore[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(cacheStore, key)
	}
	return "", false
}

func cacheSet(key, value string) {
	if key == "" {
		return
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cacheStore[key] = cacheEntry{
		value: value,
		exp:   time.Now().Add(cacheTTL),
	}
}

func extractRetryAfter(errBody map[string]any) time.Duration {
	errObj, ok := errBody["error"].(map[string]any)
	if !ok {
		return 0
	}
	details, ok := errObj["details"].([]any)
	if !ok {
		return 0
	}
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := m["@type"].(string); ok && strings.Contains(t, "RetryInfo") {
			if s, ok := m["retryDelay"].(string); ok {
				if dur, err := time.ParseDuration(s); err == nil {
					return dur
				}
			}
		}
	}
	return 0
}
