package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tikozap/backend/internal/metrics"
	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
	"github.com/tikozap/backend/internal/support"
)

type ScoringStore interface {
	GetConversationsForScoring(ctx context.Context) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertQualityReport(ctx context.Context, r models.QualityReport) (models.QualityReport, error)
}

// ProcessingService re-scores conversations that were imported or stored
// without a quality report.
type ProcessingService struct {
	Store     ScoringStore
	Evaluator quality.Evaluator
	Logger    zerolog.Logger
}

type RunSummary struct {
	Events  []map[string]any `json:"events"`
	Counts  map[string]any   `json:"counts"`
	Samples []map[string]any `json:"samples,omitempty"`
}

func (s *ProcessingService) RescoreConversations(ctx context.Context, debug bool) (RunSummary, error) {
	convs, err := s.Store.GetConversationsForScoring(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Counts: map[string]any{}}
	start := time.Now()
	summary.Events = append(summary.Events, map[string]any{
		"type":    "scoring_started",
		"message": "Conversations ready for scoring",
		"count":   len(convs),
		"time":    start.UTC(),
	})

	var (
		scored       int
		skipped      int
		failed       int
		needsHuman   int
		overallTotal int
		grades       = map[string]int{}
		sources      = map[string]int{}
	)

	for _, c := range convs {
		msgs, err := s.Store.ListMessages(ctx, c.ID)
		if err != nil {
			failed++
			s.Logger.Error().Err(err).Str("conversation_id", c.ID).Msg("load messages failed")
			continue
		}
		in, messageID, ok := inputFromMessages(msgs)
		if !ok {
			skipped++
			continue
		}

		report := s.Evaluator.Evaluate(in)
		stored := models.NewQualityReport(c.ID, c.TenantID, messageID, in.Conversation.Source, in.Transport.Twilio, report)
		if _, err := s.Store.InsertQualityReport(ctx, stored); err != nil {
			failed++
			s.Logger.Error().Err(err).Str("conversation_id", c.ID).Msg("insert quality report failed")
			continue
		}

		scored++
		overallTotal += report.Scores.Overall
		grades[string(report.Grade)]++
		sources[string(in.Conversation.Source)]++
		if in.Conversation.Source == quality.SourceCanned {
			needsHuman++
		}
		metrics.RecordQuality(string(report.Grade), report.Scores.Overall)

		if debug && len(summary.Samples) < 5 {
			summary.Samples = append(summary.Samples, map[string]any{
				"conversation_id": c.ID,
				"input":           in,
				"report":          report,
			})
		}
	}

	summary.Counts["conversations"] = len(convs)
	summary.Counts["scored"] = scored
	summary.Counts["skipped"] = skipped
	summary.Counts["failed"] = failed
	summary.Counts["needs_human"] = needsHuman
	summary.Counts["grades"] = grades
	summary.Counts["sources"] = sources
	summary.Counts["avg_overall"] = avgScore(overallTotal, scored)
	summary.Events = append(summary.Events, map[string]any{
		"type":        "scoring_finished",
		"message":     "Conversations scored",
		"count":       scored,
		"duration_ms": time.Since(start).Milliseconds(),
		"time":        time.Now().UTC(),
	})

	s.Logger.Info().Int("scored", scored).Int("skipped", skipped).Int("failed", failed).Msg("rescore finished")
	return summary, nil
}

// inputFromMessages rebuilds evaluator input from the last assistant reply
// of a stored conversation. Conversations without a customer message are
// not scoreable.
func inputFromMessages(msgs []models.Message) (quality.Input, *string, bool) {
	var (
		userTurns     int
		lastCustomer  *models.Message
		lastAssistant *models.Message
	)
	for i := range msgs {
		switch msgs[i].Role {
		case models.RoleCustomer:
			userTurns++
			lastCustomer = &msgs[i]
		case models.RoleAssistant:
			lastAssistant = &msgs[i]
		}
	}
	if lastCustomer == nil {
		return quality.Input{}, nil, false
	}

	in := quality.Input{Conversation: quality.ConversationInput{UserTurns: quality.Int(userTurns)}}
	if lastAssistant == nil {
		// Score the reply the classifier would have sent.
		rule := support.BuildReply(lastCustomer.Text)
		in.Conversation.Source = sourceForIntent(rule.Intent)
		in.Conversation.Signals = signalsFor(rule.Reply)
		return in, nil, true
	}

	in.Transport = quality.TransportInput{
		FirstTokenMs:    lastAssistant.FirstTokenMs,
		TotalResponseMs: lastAssistant.TotalMs,
		UsedSSE:         lastAssistant.UsedSSE,
		FallbackUsed:    lastAssistant.FallbackUsed,
	}
	switch quality.Source(lastAssistant.Source) {
	case quality.SourceRule, quality.SourceModel, quality.SourceCanned:
		in.Conversation.Source = quality.Source(lastAssistant.Source)
	default:
		in.Conversation.Source = sourceForIntent(support.DetectIntent(lastCustomer.Text))
	}
	in.Conversation.Signals = signalsFor(lastAssistant.Text)
	id := lastAssistant.ID
	return in, &id, true
}

func sourceForIntent(intent support.Intent) quality.Source {
	if intent == support.IntentUnknown {
		return quality.SourceCanned
	}
	return quality.SourceRule
}

func signalsFor(reply string) *quality.Signals {
	s := DetectSignals(reply)
	return &s
}

func avgScore(total, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}
