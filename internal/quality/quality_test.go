package quality

import (
	"testing"
)

func allSignals() *Signals {
	return &Signals{
		MentionsHandoff:     true,
		MentionsSafePreview: true,
		MentionsSetupPath:   true,
		MentionsStarterLink: true,
	}
}

func TestEvaluateHealthyModelTurn(t *testing.T) {
	report := Evaluate(Input{
		Transport: TransportInput{FirstTokenMs: Float(600), UsedSSE: Bool(true)},
		Conversation: ConversationInput{
			Source:    SourceModel,
			Signals:   allSignals(),
			UserTurns: Int(3),
		},
	})
	if report.Scores.Transport != 90 {
		t.Fatalf("expected transport 90, got %d", report.Scores.Transport)
	}
	if report.Scores.Conversation != 100 {
		t.Fatalf("expected conversation clamped to 100, got %d", report.Scores.Conversation)
	}
	if report.Scores.Overall != 96 {
		t.Fatalf("expected overall 96, got %d", report.Scores.Overall)
	}
	if report.Grade != GradeA {
		t.Fatalf("expected grade A, got %s", report.Grade)
	}
	if len(report.Recommendations) != 0 {
		t.Fatalf("expected no recommendations, got %v", report.Recommendations)
	}
}

func TestEvaluatePoorVoiceCannedTurn(t *testing.T) {
	report := Evaluate(Input{
		Transport:    TransportInput{Twilio: &TwilioMetrics{MOS: Float(3.2)}},
		Conversation: ConversationInput{Source: SourceCanned},
	})
	if report.Scores.Transport != 66 {
		t.Fatalf("expected transport 66, got %d", report.Scores.Transport)
	}
	if report.Scores.Conversation != 67 {
		t.Fatalf("expected conversation 67, got %d", report.Scores.Conversation)
	}
	if report.Scores.Overall != 67 {
		t.Fatalf("expected overall 67, got %d", report.Scores.Overall)
	}
	if report.Grade != GradeC {
		t.Fatalf("expected grade C, got %s", report.Grade)
	}
	for _, want := range []string{recVoiceInsights, recRegionReview, recAddHandoff, recRaiseHitRate, recPrioritizeSpeed} {
		if !contains(report.Recommendations, want) {
			t.Fatalf("missing recommendation %q in %v", want, report.Recommendations)
		}
	}
}

func TestScoreTransportSSE(t *testing.T) {
	th := DefaultThresholds()
	if got := ScoreTransport(TransportInput{UsedSSE: Bool(true)}, th).Score; got != 90 {
		t.Fatalf("expected 90 with SSE, got %d", got)
	}
	if got := ScoreTransport(TransportInput{UsedSSE: Bool(false)}, th).Score; got != 82 {
		t.Fatalf("expected 82 without SSE, got %d", got)
	}
	if got := ScoreTransport(TransportInput{}, th).Score; got != 86 {
		t.Fatalf("expected base 86 when SSE is unknown, got %d", got)
	}
}

func TestScoreTransportLatency(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name  string
		in    TransportInput
		score int
	}{
		{"first token slow", TransportInput{FirstTokenMs: Float(2501)}, 62},
		{"first token at slow bound", TransportInput{FirstTokenMs: Float(2500)}, 72},
		{"first token moderate", TransportInput{FirstTokenMs: Float(1501)}, 72},
		{"first token healthy", TransportInput{FirstTokenMs: Float(1500)}, 86},
		{"total slow", TransportInput{TotalResponseMs: Float(7001)}, 70},
		{"total moderate", TransportInput{TotalResponseMs: Float(4501)}, 78},
		{"total fine", TransportInput{TotalResponseMs: Float(4500)}, 86},
		{"fallback", TransportInput{FallbackUsed: true}, 76},
	}
	for _, tc := range cases {
		if got := ScoreTransport(tc.in, th).Score; got != tc.score {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.score, got)
		}
	}

	slow := ScoreTransport(TransportInput{FirstTokenMs: Float(3000)}, th)
	if !contains(slow.Recommendations, recReduceLatency) {
		t.Fatalf("expected latency recommendation, got %v", slow.Recommendations)
	}
	fb := ScoreTransport(TransportInput{FallbackUsed: true}, th)
	if !contains(fb.Recommendations, recMonitorFallback) {
		t.Fatalf("expected fallback monitoring recommendation, got %v", fb.Recommendations)
	}
}

func TestScoreTransportVoice(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name  string
		tw    TwilioMetrics
		score int
	}{
		{"mos poor", TwilioMetrics{MOS: Float(3.4)}, 66},
		{"mos fair", TwilioMetrics{MOS: Float(3.9)}, 78},
		{"mos good", TwilioMetrics{MOS: Float(4.3)}, 86},
		{"jitter", TwilioMetrics{JitterMs: Float(31)}, 76},
		{"packet loss", TwilioMetrics{PacketLossPct: Float(2)}, 72},
		{"round trip", TwilioMetrics{RoundTripMs: Float(300)}, 78},
		{"all bad", TwilioMetrics{MOS: Float(2), JitterMs: Float(80), PacketLossPct: Float(9), RoundTripMs: Float(900)}, 34},
	}
	for _, tc := range cases {
		tw := tc.tw
		if got := ScoreTransport(TransportInput{Twilio: &tw}, th).Score; got != tc.score {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.score, got)
		}
	}
}

func TestAbsentMetricDiffersFromZero(t *testing.T) {
	th := DefaultThresholds()
	absent := ScoreTransport(TransportInput{Twilio: &TwilioMetrics{}}, th)
	zero := ScoreTransport(TransportInput{Twilio: &TwilioMetrics{MOS: Float(0)}}, th)
	if absent.Score != 86 {
		t.Fatalf("expected absent MOS to be skipped, got %d", absent.Score)
	}
	if zero.Score != 66 {
		t.Fatalf("expected zero MOS to be evaluated, got %d", zero.Score)
	}

	noLoss := ScoreTransport(TransportInput{Twilio: &TwilioMetrics{PacketLossPct: Float(0)}}, th)
	if noLoss.Score != 86 {
		t.Fatalf("expected zero packet loss to pass, got %d", noLoss.Score)
	}
}

func TestRegionReviewUsesScoreAfterVoicePenalties(t *testing.T) {
	th := DefaultThresholds()

	fairOnly := ScoreTransport(TransportInput{Twilio: &TwilioMetrics{MOS: Float(3.9)}}, th)
	if contains(fairOnly.Recommendations, recRegionReview) {
		t.Fatalf("did not expect region review at score %d", fairOnly.Score)
	}

	combined := ScoreTransport(TransportInput{Twilio: &TwilioMetrics{MOS: Float(3.9), JitterMs: Float(45)}}, th)
	if combined.Score != 68 || !contains(combined.Recommendations, recRegionReview) {
		t.Fatalf("expected region review at score 68, got %+v", combined)
	}

	// Latency penalties also count toward the running score.
	latency := ScoreTransport(TransportInput{FirstTokenMs: Float(2000), Twilio: &TwilioMetrics{RoundTripMs: Float(10)}}, th)
	if latency.Score != 72 || contains(latency.Recommendations, recRegionReview) {
		t.Fatalf("expected no region review at exactly 72, got %+v", latency)
	}

	noVoice := ScoreTransport(TransportInput{FirstTokenMs: Float(9000), FallbackUsed: true}, th)
	if contains(noVoice.Recommendations, recRegionReview) {
		t.Fatalf("region review needs voice metrics, got %v", noVoice.Recommendations)
	}
}

func TestCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.FirstTokenSlowMs = 800
	th.FirstTokenModerateMs = 400
	if got := ScoreTransport(TransportInput{FirstTokenMs: Float(900)}, th).Score; got != 62 {
		t.Fatalf("expected custom slow threshold to apply, got %d", got)
	}
	if got := ScoreTransport(TransportInput{FirstTokenMs: Float(900)}, Thresholds{}).Score; got != 86 {
		t.Fatalf("expected zero thresholds to fall back to defaults, got %d", got)
	}
}

func TestScoreConversation(t *testing.T) {
	cases := []struct {
		name  string
		in    ConversationInput
		score int
	}{
		{"model bare", ConversationInput{Source: SourceModel}, 80},
		{"rule bare", ConversationInput{Source: SourceRule}, 75},
		{"canned bare", ConversationInput{Source: SourceCanned}, 67},
		{"unknown source", ConversationInput{Source: "other"}, 67},
		{"rule handoff", ConversationInput{Source: SourceRule, Signals: &Signals{MentionsHandoff: true}}, 84},
		{"rule preview setup", ConversationInput{Source: SourceRule, Signals: &Signals{MentionsSafePreview: true, MentionsSetupPath: true}}, 86},
		{"canned starter", ConversationInput{Source: SourceCanned, Signals: &Signals{MentionsStarterLink: true}}, 72},
		{"two turns", ConversationInput{Source: SourceRule, UserTurns: Int(2)}, 75},
		{"three turns", ConversationInput{Source: SourceRule, UserTurns: Int(3)}, 77},
		{"all signals", ConversationInput{Source: SourceModel, Signals: allSignals(), UserTurns: Int(10)}, 100},
	}
	for _, tc := range cases {
		if got := ScoreConversation(tc.in).Score; got != tc.score {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.score, got)
		}
	}

	noHandoff := ScoreConversation(ConversationInput{Source: SourceModel})
	if !contains(noHandoff.Recommendations, recAddHandoff) {
		t.Fatalf("expected handoff recommendation, got %v", noHandoff.Recommendations)
	}
	canned := ScoreConversation(ConversationInput{Source: SourceCanned, Signals: &Signals{MentionsHandoff: true}})
	if !contains(canned.Recommendations, recRaiseHitRate) || contains(canned.Recommendations, recAddHandoff) {
		t.Fatalf("unexpected canned recommendations: %v", canned.Recommendations)
	}
}

func TestScoresStayInBounds(t *testing.T) {
	extremes := []float64{-1e9, -1, 0, 0.5, 3.49, 3.5, 4, 30, 260, 1500, 2500, 7000, 1e9}
	sources := []Source{SourceModel, SourceRule, SourceCanned, ""}
	for _, v := range extremes {
		for _, src := range sources {
			for _, sse := range []*bool{nil, Bool(true), Bool(false)} {
				in := Input{
					Transport: TransportInput{
						FirstTokenMs:    Float(v),
						TotalResponseMs: Float(v),
						UsedSSE:         sse,
						FallbackUsed:    v > 1000,
						Twilio: &TwilioMetrics{
							MOS:           Float(v),
							JitterMs:      Float(v),
							PacketLossPct: Float(v),
							RoundTripMs:   Float(v),
						},
					},
					Conversation: ConversationInput{Source: src, Signals: allSignals(), UserTurns: Int(int(v) % 100)},
				}
				r := Evaluate(in)
				for _, s := range []int{r.Scores.Transport, r.Scores.Conversation, r.Scores.Overall} {
					if s < 0 || s > 100 {
						t.Fatalf("score out of bounds for %+v: %+v", in, r.Scores)
					}
				}
				if r.Scores.Overall != Overall(r.Scores.Transport, r.Scores.Conversation) {
					t.Fatalf("overall mismatch: %+v", r.Scores)
				}
				if r.Grade != GradeFor(r.Scores.Overall) {
					t.Fatalf("grade mismatch: %s for %d", r.Grade, r.Scores.Overall)
				}
			}
		}
	}
}

func TestTransportFloorsAtZero(t *testing.T) {
	in := TransportInput{
		FirstTokenMs:    Float(10000),
		TotalResponseMs: Float(10000),
		UsedSSE:         Bool(false),
		FallbackUsed:    true,
		Twilio:          &TwilioMetrics{MOS: Float(1), JitterMs: Float(100), PacketLossPct: Float(20), RoundTripMs: Float(1000)},
	}
	if got := ScoreTransport(in, DefaultThresholds()).Score; got != 0 {
		t.Fatalf("expected transport clamped to 0, got %d", got)
	}
}

func TestOverall(t *testing.T) {
	cases := []struct {
		transport, conversation, want int
	}{
		{90, 100, 96},
		{66, 67, 67},
		{0, 0, 0},
		{100, 100, 100},
		{100, 0, 45},
		{0, 100, 55},
	}
	for _, tc := range cases {
		if got := Overall(tc.transport, tc.conversation); got != tc.want {
			t.Fatalf("Overall(%d, %d) = %d, want %d", tc.transport, tc.conversation, got, tc.want)
		}
	}
}

func TestGradeFor(t *testing.T) {
	cases := map[int]Grade{
		100: GradeA, 85: GradeA,
		84: GradeB, 75: GradeB,
		74: GradeC, 65: GradeC,
		64: GradeD, 0: GradeD,
	}
	for overall, want := range cases {
		if got := GradeFor(overall); got != want {
			t.Fatalf("GradeFor(%d) = %s, want %s", overall, got, want)
		}
	}
}

func TestEvaluateAddsSpeedRecommendationBelow75(t *testing.T) {
	high := Evaluate(Input{
		Transport:    TransportInput{UsedSSE: Bool(true)},
		Conversation: ConversationInput{Source: SourceModel, Signals: allSignals()},
	})
	if contains(high.Recommendations, recPrioritizeSpeed) {
		t.Fatalf("unexpected speed recommendation at %d", high.Scores.Overall)
	}

	low := Evaluate(Input{
		Transport:    TransportInput{FirstTokenMs: Float(4000), UsedSSE: Bool(false)},
		Conversation: ConversationInput{Source: SourceCanned},
	})
	if low.Scores.Overall >= 75 || !contains(low.Recommendations, recPrioritizeSpeed) {
		t.Fatalf("expected speed recommendation, got %+v", low)
	}
}

func TestReportListsHaveNoDuplicates(t *testing.T) {
	r := Evaluate(Input{
		Transport: TransportInput{
			FirstTokenMs: Float(5000),
			FallbackUsed: true,
			Twilio:       &TwilioMetrics{MOS: Float(2.1), JitterMs: Float(50)},
		},
		Conversation: ConversationInput{Source: SourceCanned},
	})
	for _, list := range [][]string{r.Reasons, r.Recommendations} {
		seen := map[string]bool{}
		for _, s := range list {
			if seen[s] {
				t.Fatalf("duplicate entry %q", s)
			}
			seen[s] = true
		}
	}
	if r.Reasons[0] != "First token is slow (5000ms > 2500ms)." {
		t.Fatalf("expected transport reasons first, got %v", r.Reasons)
	}
}

func TestCollectorDeduplicates(t *testing.T) {
	var c collector
	c.reason("a")
	c.reason("b")
	c.reason("a")
	c.recommend("x")
	c.merge(Layer{Reasons: []string{"b", "c"}, Recommendations: []string{"x", "y"}})
	l := c.layer(50)
	if len(l.Reasons) != 3 || l.Reasons[2] != "c" {
		t.Fatalf("unexpected reasons: %v", l.Reasons)
	}
	if len(l.Recommendations) != 2 || l.Recommendations[1] != "y" {
		t.Fatalf("unexpected recommendations: %v", l.Recommendations)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
