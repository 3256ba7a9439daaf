package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tikozap/backend/internal/ai"
	"github.com/tikozap/backend/internal/metrics"
	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/support"
)

// historyLimit caps how many prior messages are sent to the generator.
const historyLimit = 12

type ReplyStore interface {
	EnsureConversation(ctx context.Context, c models.Conversation) (models.Conversation, error)
	InsertMessage(ctx context.Context, m models.Message) (models.Message, error)
	CountCustomerMessages(ctx context.Context, conversationID string) (int, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SaveTurn(ctx context.Context, reply models.Message, report models.QualityReport, status string) (models.Message, models.QualityReport, error)
}

type ReplyService struct {
	Store     ReplyStore
	Generator ai.Generator
	Evaluator quality.Evaluator
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Turn is one inbound customer message. Transport carries whatever delivery
// telemetry the client reported; missing latency is measured here.
type Turn struct {
	TenantID       string
	ConversationID string
	Channel        string
	ExternalRef    string
	Customer       string
	Text           string
	Transport      quality.TransportInput
}

type TurnResult struct {
	Conversation models.Conversation  `json:"conversation"`
	Message      models.Message       `json:"message"`
	Reply        models.Message       `json:"reply"`
	Report       models.QualityReport `json:"report"`
	Status       string               `json:"status"`
}

func (s *ReplyService) Handle(ctx context.Context, turn Turn) (TurnResult, error) {
	start := s.now()
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return TurnResult{}, fmt.Errorf("empty message")
	}
	channel := turn.Channel
	if channel == "" {
		channel = models.ChannelWidget
	}

	conv, err := s.Store.EnsureConversation(ctx, models.Conversation{
		ID:          turn.ConversationID,
		TenantID:    turn.TenantID,
		Channel:     channel,
		ExternalRef: turn.ExternalRef,
		Customer:    turn.Customer,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("ensure conversation: %w", err)
	}

	rule := support.BuildReply(text)
	metrics.RecordIntent(string(rule.Intent))
	customer, err := s.Store.InsertMessage(ctx, models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleCustomer,
		Text:           text,
		Intent:         string(rule.Intent),
		CreatedAt:      start.UTC(),
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("insert customer message: %w", err)
	}

	transport := turn.Transport
	source := quality.SourceRule
	replyText := rule.Reply
	needsHuman := rule.NeedsHuman

	if rule.Intent == support.IntentUnknown {
		source = quality.SourceCanned
		if s.Generator != nil {
			res, latencyMs, genErr := s.generate(ctx, conv, text)
			switch {
			case genErr != nil:
				s.Logger.Warn().Err(genErr).Str("conversation_id", conv.ID).Msg("generator failed, using canned reply")
				transport.FallbackUsed = true
			default:
				source = quality.SourceModel
				replyText = res.Text
				needsHuman = false
				if transport.FirstTokenMs == nil {
					transport.FirstTokenMs = quality.Float(float64(latencyMs))
				}
			}
		}
	}
	signals := signalsFor(replyText)

	userTurns, err := s.Store.CountCustomerMessages(ctx, conv.ID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("count customer messages: %w", err)
	}
	if transport.TotalResponseMs == nil {
		transport.TotalResponseMs = quality.Float(float64(s.now().Sub(start).Milliseconds()))
	}

	report := s.Evaluator.Evaluate(quality.Input{
		Transport: transport,
		Conversation: quality.ConversationInput{
			Source:    source,
			Signals:   signals,
			UserTurns: quality.Int(userTurns),
		},
	})

	status := models.StatusOpen
	if needsHuman {
		status = models.StatusNeedsHuman
	}
	reply := models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Text:           replyText,
		Intent:         string(rule.Intent),
		Source:         string(source),
		NeedsHuman:     needsHuman,
		FirstTokenMs:   transport.FirstTokenMs,
		TotalMs:        transport.TotalResponseMs,
		UsedSSE:        transport.UsedSSE,
		FallbackUsed:   transport.FallbackUsed,
		CreatedAt:      s.now().UTC(),
	}
	stored := models.NewQualityReport(conv.ID, conv.TenantID, nil, source, transport.Twilio, report)
	reply, stored, err = s.Store.SaveTurn(ctx, reply, stored, status)
	if err != nil {
		return TurnResult{}, fmt.Errorf("save turn: %w", err)
	}

	metrics.RecordReply(string(source), channel)
	metrics.RecordQuality(string(report.Grade), report.Scores.Overall)
	s.Logger.Info().
		Str("conversation_id", conv.ID).
		Str("tenant_id", conv.TenantID).
		Str("intent", string(rule.Intent)).
		Str("source", string(source)).
		Int("overall", report.Scores.Overall).
		Str("grade", string(report.Grade)).
		Bool("needs_human", needsHuman).
		Msg("reply sent")

	conv.Status = status
	conv.LastIntent = string(rule.Intent)
	return TurnResult{Conversation: conv, Message: customer, Reply: reply, Report: stored, Status: status}, nil
}

func (s *ReplyService) generate(ctx context.Context, conv models.Conversation, text string) (ai.ReplyResult, int64, error) {
	msgs, err := s.Store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ai.ReplyResult{}, 0, fmt.Errorf("load history: %w", err)
	}
	history := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ai.ChatMessage{Role: m.Role, Content: m.Text})
	}
	// The current customer message is the last entry; it goes in Text.
	if n := len(history); n > 0 && history[n-1].Role == models.RoleCustomer && history[n-1].Content == text {
		history = history[:n-1]
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	res, latency, err := s.Generator.Reply(ctx, ai.ReplyRequest{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Text:           text,
		History:        history,
	})
	if err != nil {
		return ai.ReplyResult{}, 0, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return ai.ReplyResult{}, 0, fmt.Errorf("generator returned an empty reply")
	}
	res.Text = strings.TrimSpace(res.Text)
	return res, latency, nil
}

func (s *ReplyService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
