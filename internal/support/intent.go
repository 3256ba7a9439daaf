package support

import "strings"

type Intent string

const (
	IntentReturns     Intent = "returns"
	IntentShipping    Intent = "shipping"
	IntentOrderStatus Intent = "order_status"
	IntentSizing      Intent = "sizing"
	IntentUnknown     Intent = "unknown"
)

// Rule maps a set of lower-case keywords to an intent. A rule matches when
// any of its keywords is a substring of the lower-cased text.
type Rule struct {
	Intent   Intent
	Keywords []string
}

// Evaluated top to bottom; the first match wins.
var rules = []Rule{
	{Intent: IntentReturns, Keywords: []string{"return"}},
	{Intent: IntentShipping, Keywords: []string{"ship", "delivery"}},
	{Intent: IntentOrderStatus, Keywords: []string{"order", "tracking"}},
	{Intent: IntentSizing, Keywords: []string{"xl", "size", "fit"}},
}

// Rules returns a copy of the ordered decision list.
func Rules() []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, Rule{Intent: r.Intent, Keywords: append([]string(nil), r.Keywords...)})
	}
	return out
}

func (r Rule) matches(lower string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.matches(lower) {
			return r.Intent
		}
	}
	return IntentUnknown
}
