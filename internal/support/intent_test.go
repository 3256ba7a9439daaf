package support

import (
	"strings"
	"testing"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"What is your return policy?", IntentReturns},
		{"Where is my package, thanks", IntentUnknown},
		{"How long does shipping take?", IntentShipping},
		{"Is DELIVERY free?", IntentShipping},
		{"Can I get my tracking number", IntentOrderStatus},
		{"my order never came", IntentOrderStatus},
		{"I need XL", IntentSizing},
		{"does this fit true to size", IntentSizing},
		{"", IntentUnknown},
		{"   ", IntentUnknown},
		{"привет", IntentUnknown},
	}
	for _, tc := range cases {
		if got := DetectIntent(tc.text); got != tc.want {
			t.Fatalf("DetectIntent(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestDetectIntentPriority(t *testing.T) {
	texts := []string{
		"I want to return this, shipping was slow",
		"ship me a return label",
		"return my order and check tracking",
		"Returns for XL size?",
	}
	for _, text := range texts {
		if got := DetectIntent(text); got != IntentReturns {
			t.Fatalf("expected returns for %q, got %s", text, got)
		}
	}
	if got := DetectIntent("delivery for my order"); got != IntentShipping {
		t.Fatalf("expected shipping to outrank order_status, got %s", got)
	}
	if got := DetectIntent("order in size M"); got != IntentOrderStatus {
		t.Fatalf("expected order_status to outrank sizing, got %s", got)
	}
}

func TestDetectIntentIdempotent(t *testing.T) {
	text := "Tracking says delivered"
	first := DetectIntent(text)
	for i := 0; i < 5; i++ {
		if got := DetectIntent(text); got != first {
			t.Fatalf("expected stable intent %s, got %s", first, got)
		}
	}
}

func TestRulesOrder(t *testing.T) {
	got := Rules()
	want := []Intent{IntentReturns, IntentShipping, IntentOrderStatus, IntentSizing}
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i, r := range got {
		if r.Intent != want[i] {
			t.Fatalf("rule %d: expected %s, got %s", i, want[i], r.Intent)
		}
	}

	got[0].Keywords[0] = "mutated"
	if DetectIntent("return") != IntentReturns {
		t.Fatalf("Rules must return a copy")
	}
}

func TestBuildReply(t *testing.T) {
	res := BuildReply("I need XL")
	if res.Intent != IntentSizing || res.NeedsHuman {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reply != replySizing {
		t.Fatalf("unexpected sizing reply: %s", res.Reply)
	}

	res = BuildReply("What is your return policy?")
	if !strings.Contains(res.Reply, "30 days") {
		t.Fatalf("returns reply should mention the 30-day window: %s", res.Reply)
	}

	res = BuildReply("Do you ship to Canada?")
	if !strings.Contains(res.Reply, "ZIP") {
		t.Fatalf("shipping reply should ask for a ZIP code: %s", res.Reply)
	}
}

func TestBuildReplyEscalatesOnlyUnknown(t *testing.T) {
	texts := []string{
		"", "hello", "return", "shipping", "order", "size", "Where is my package, thanks", "??!",
	}
	for _, text := range texts {
		res := BuildReply(text)
		if res.NeedsHuman != (DetectIntent(text) == IntentUnknown) {
			t.Fatalf("needs_human mismatch for %q: %+v", text, res)
		}
		if res.Intent != DetectIntent(text) {
			t.Fatalf("intent mismatch for %q: %+v", text, res)
		}
	}
	if res := BuildReply("blah"); res.Reply != replyUnknown {
		t.Fatalf("unexpected escalation reply: %s", res.Reply)
	}
}
