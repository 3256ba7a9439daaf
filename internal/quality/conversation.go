package quality

import "fmt"

const (
	baseModel  = 80
	baseRule   = 75
	baseCanned = 67

	handoffBonus     = 9
	safePreviewBonus = 5
	setupPathBonus   = 6
	starterLinkBonus = 5
	engagementBonus  = 2

	engagedUserTurns = 3
)

const (
	recAddHandoff   = "Add clear human-handoff language so customers know a teammate can take over."
	recRaiseHitRate = "Increase model/rule hit rate so fewer turns fall back to canned replies."
)

// ScoreConversation scores the content of a reply from its source and the
// caller-supplied signals.
func ScoreConversation(in ConversationInput) Layer {
	var acc collector
	score := baseFor(in.Source)
	acc.reason(fmt.Sprintf("Reply source: %s.", sourceLabel(in.Source)))

	var sig Signals
	if in.Signals != nil {
		sig = *in.Signals
	}

	if sig.MentionsHandoff {
		score += handoffBonus
		acc.reason("Reply offers a human handoff.")
	} else {
		acc.recommend(recAddHandoff)
	}
	if sig.MentionsSafePreview {
		score += safePreviewBonus
		acc.reason("Reply mentions the safe preview.")
	}
	if sig.MentionsSetupPath {
		score += setupPathBonus
		acc.reason("Reply points to a concrete setup path.")
	}
	if sig.MentionsStarterLink {
		score += starterLinkBonus
		acc.reason("Reply includes the starter link.")
	}
	if in.UserTurns != nil && *in.UserTurns >= engagedUserTurns {
		score += engagementBonus
		acc.reason(fmt.Sprintf("Customer stayed engaged for %d turns.", *in.UserTurns))
	}

	if in.Source == SourceCanned {
		acc.recommend(recRaiseHitRate)
	}

	return acc.layer(Clamp(score))
}

func baseFor(source Source) int {
	switch source {
	case SourceModel:
		return baseModel
	case SourceRule:
		return baseRule
	default:
		return baseCanned
	}
}

func sourceLabel(source Source) string {
	switch source {
	case SourceModel, SourceRule:
		return string(source)
	default:
		return string(SourceCanned)
	}
}
