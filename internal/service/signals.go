package service

import (
	"strings"

	"github.com/tikozap/backend/internal/quality"
)

var (
	starterLinkMarkers = []string{"starter link", "tikozap.com/start", "/start"}
	handoffMarkers     = []string{"teammate", "human", "agent", "hand this", "handoff", "hand off", "connect you"}
	safePreviewMarkers = []string{"safe preview", "preview mode", "test mode"}
	setupPathMarkers   = []string{"setup path", "setup guide", "onboarding", "step 1", "dashboard"}
)

// DetectSignals inspects a generated reply for the content markers the
// conversation scorer rewards.
func DetectSignals(reply string) quality.Signals {
	text := strings.ToLower(reply)
	return quality.Signals{
		MentionsStarterLink: containsAny(text, starterLinkMarkers),
		MentionsHandoff:     containsAny(text, handoffMarkers),
		MentionsSafePreview: containsAny(text, safePreviewMarkers),
		MentionsSetupPath:   containsAny(text, setupPathMarkers),
	}
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
