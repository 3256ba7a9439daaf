package quality

import "math"

const (
	transportWeight    = 0.45
	conversationWeight = 0.55

	minScore = 0
	maxScore = 100

	escalationReviewScore = 75
)

const recPrioritizeSpeed = "Prioritize first-response speed and confidence-based escalation to a human when the reply is uncertain."

// Evaluator scores turns against a fixed set of transport thresholds. The
// zero value uses DefaultThresholds.
type Evaluator struct {
	Thresholds Thresholds
}

func NewEvaluator(th Thresholds) Evaluator {
	return Evaluator{Thresholds: th.withDefaults()}
}

// Evaluate scores in with the default thresholds.
func Evaluate(in Input) Report {
	return Evaluator{}.Evaluate(in)
}

func (e Evaluator) Evaluate(in Input) Report {
	transport := ScoreTransport(in.Transport, e.Thresholds)
	conversation := ScoreConversation(in.Conversation)

	var acc collector
	acc.merge(transport)
	acc.merge(conversation)

	overall := Overall(transport.Score, conversation.Score)
	if overall < escalationReviewScore {
		acc.recommend(recPrioritizeSpeed)
	}

	return Report{
		Scores: Scores{
			Transport:    transport.Score,
			Conversation: conversation.Score,
			Overall:      overall,
		},
		Grade:           GradeFor(overall),
		Reasons:         acc.reasonList(),
		Recommendations: acc.recommendationList(),
	}
}

// Overall combines the two layer scores into the weighted overall score.
func Overall(transport, conversation int) int {
	// Explicit conversions keep the products from being fused.
	weighted := float64(float64(transport)*transportWeight) + float64(float64(conversation)*conversationWeight)
	return Clamp(int(math.Round(weighted)))
}

func GradeFor(overall int) Grade {
	switch {
	case overall >= 85:
		return GradeA
	case overall >= 75:
		return GradeB
	case overall >= 65:
		return GradeC
	default:
		return GradeD
	}
}

func Clamp(v int) int {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// collector accumulates reasons and recommendations in insertion order,
// dropping duplicates.
type collector struct {
	reasons         []string
	recommendations []string
	seenReasons     map[string]struct{}
	seenRecs        map[string]struct{}
}

func (c *collector) reason(s string) {
	if c.seenReasons == nil {
		c.seenReasons = map[string]struct{}{}
	}
	if _, ok := c.seenReasons[s]; ok {
		return
	}
	c.seenReasons[s] = struct{}{}
	c.reasons = append(c.reasons, s)
}

func (c *collector) recommend(s string) {
	if c.seenRecs == nil {
		c.seenRecs = map[string]struct{}{}
	}
	if _, ok := c.seenRecs[s]; ok {
		return
	}
	c.seenRecs[s] = struct{}{}
	c.recommendations = append(c.recommendations, s)
}

func (c *collector) merge(l Layer) {
	for _, r := range l.Reasons {
		c.reason(r)
	}
	for _, r := range l.Recommendations {
		c.recommend(r)
	}
}

func (c *collector) reasonList() []string {
	return append([]string{}, c.reasons...)
}

func (c *collector) recommendationList() []string {
	return append([]string{}, c.recommendations...)
}

func (c *collector) layer(score int) Layer {
	return Layer{
		Score:           score,
		Reasons:         c.reasonList(),
		Recommendations: c.recommendationList(),
	}
}
