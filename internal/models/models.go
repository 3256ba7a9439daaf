package models

import (
	"time"

	"github.com/tikozap/backend/internal/quality"
)

const (
	RoleCustomer  = "customer"
	RoleAssistant = "assistant"
	RoleAgent     = "agent"

	ChannelWidget = "widget"
	ChannelVoice  = "voice"

	StatusOpen       = "OPEN"
	StatusNeedsHuman = "NEEDS_HUMAN"
	StatusHuman      = "HUMAN"
	StatusResolved   = "RESOLVED"
)

type Conversation struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Channel     string    `json:"channel"`
	ExternalRef string    `json:"external_ref,omitempty"`
	Customer    string    `json:"customer,omitempty"`
	Status      string    `json:"status"`
	Assignee    *string   `json:"assignee"`
	LastIntent  string    `json:"last_intent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	Intent         string    `json:"intent,omitempty"`
	Source         string    `json:"source,omitempty"`
	NeedsHuman     bool      `json:"needs_human"`
	FirstTokenMs   *float64  `json:"first_token_ms,omitempty"`
	TotalMs        *float64  `json:"total_ms,omitempty"`
	UsedSSE        *bool     `json:"used_sse,omitempty"`
	FallbackUsed   bool      `json:"fallback_used"`
	CreatedAt      time.Time `json:"created_at"`
}

type QualityReport struct {
	ID              string                 `json:"id"`
	ConversationID  string                 `json:"conversation_id"`
	MessageID       *string                `json:"message_id"`
	TenantID        string                 `json:"tenant_id"`
	Source          string                 `json:"source"`
	Transport       int                    `json:"transport"`
	Conversation    int                    `json:"conversation"`
	Overall         int                    `json:"overall"`
	Grade           string                 `json:"grade"`
	Reasons         []string               `json:"reasons"`
	Recommendations []string               `json:"recommendations"`
	Twilio          *quality.TwilioMetrics `json:"twilio,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// QualitySummary aggregates stored reports for a tenant.
type QualitySummary struct {
	TenantID        string         `json:"tenant_id"`
	Reports         int            `json:"reports"`
	AvgTransport    float64        `json:"avg_transport"`
	AvgConversation float64        `json:"avg_conversation"`
	AvgOverall      float64        `json:"avg_overall"`
	Grades          map[string]int `json:"grades"`
	Sources         map[string]int `json:"sources"`
}

type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Summary    []byte    `json:"summary"`
}

func NewQualityReport(conversationID, tenantID string, messageID *string, source quality.Source, twilio *quality.TwilioMetrics, r quality.Report) QualityReport {
	return QualityReport{
		ConversationID:  conversationID,
		MessageID:       messageID,
		TenantID:        tenantID,
		Source:          string(source),
		Transport:       r.Scores.Transport,
		Conversation:    r.Scores.Conversation,
		Overall:         r.Scores.Overall,
		Grade:           string(r.Grade),
		Reasons:         r.Reasons,
		Recommendations: r.Recommendations,
		Twilio:          twilio,
		CreatedAt:       time.Now().UTC(),
	}
}

type ConversationDetails struct {
	Conversation Conversation    `json:"conversation"`
	Messages     []Message       `json:"messages"`
	Reports      []QualityReport `json:"reports"`
}
