package ai

import (
	"context"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ReplyRequest struct {
	TenantID       string
	ConversationID string
	Text           string
	History        []ChatMessage
}

type ReplyResult struct {
	Text         string `json:"text"`
	ModelVersion string `json:"model_version"`
}

// Generator produces a model-written reply for turns the rule classifier
// could not answer. The returned latency is in milliseconds.
type Generator interface {
	Reply(ctx context.Context, req ReplyRequest) (ReplyResult, int64, error)
}
