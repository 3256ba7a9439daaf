// Package quality scores a support turn on two independent layers: how the
// reply was delivered (transport) and what it said (conversation).
package quality

type Source string

const (
	SourceRule   Source = "rule"
	SourceModel  Source = "model"
	SourceCanned Source = "canned"
)

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// TwilioMetrics holds per-call voice network telemetry. A nil field means the
// metric was not reported; it is skipped rather than treated as zero.
type TwilioMetrics struct {
	MOS           *float64 `json:"mos,omitempty"`
	JitterMs      *float64 `json:"jitter_ms,omitempty"`
	PacketLossPct *float64 `json:"packet_loss_pct,omitempty"`
	RoundTripMs   *float64 `json:"round_trip_ms,omitempty"`
}

func (m *TwilioMetrics) Empty() bool {
	return m == nil || (m.MOS == nil && m.JitterMs == nil && m.PacketLossPct == nil && m.RoundTripMs == nil)
}

type TransportInput struct {
	FirstTokenMs    *float64       `json:"first_token_ms,omitempty"`
	TotalResponseMs *float64       `json:"total_response_ms,omitempty"`
	UsedSSE         *bool          `json:"used_sse,omitempty"`
	FallbackUsed    bool           `json:"fallback_used"`
	Twilio          *TwilioMetrics `json:"twilio,omitempty"`
}

// Signals describe the semantic content of a generated reply. They are
// computed by the caller.
type Signals struct {
	MentionsStarterLink bool `json:"mentions_starter_link"`
	MentionsHandoff     bool `json:"mentions_handoff"`
	MentionsSafePreview bool `json:"mentions_safe_preview"`
	MentionsSetupPath   bool `json:"mentions_setup_path"`
}

type ConversationInput struct {
	Source    Source   `json:"source" validate:"required,oneof=rule model canned"`
	Signals   *Signals `json:"signals,omitempty"`
	UserTurns *int     `json:"user_turns,omitempty" validate:"omitempty,gte=0"`
}

type Input struct {
	Transport    TransportInput    `json:"transport"`
	Conversation ConversationInput `json:"conversation"`
}

// Layer is the result of a single scorer.
type Layer struct {
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
}

type Scores struct {
	Transport    int `json:"transport"`
	Conversation int `json:"conversation"`
	Overall      int `json:"overall"`
}

type Report struct {
	Scores          Scores   `json:"scores"`
	Grade           Grade    `json:"grade"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
}

// Float, Int and Bool build optional inputs.
func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Bool(v bool) *bool { return &v }
