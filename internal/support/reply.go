package support

type Reply struct {
	Intent     Intent `json:"intent"`
	Reply      string `json:"reply"`
	NeedsHuman bool   `json:"needs_human"`
}

const (
	replyReturns     = "You can return unworn items with tags attached within 30 days of delivery. Want me to outline the return steps for your order?"
	replyShipping    = "Orders are processed in 1-2 business days, and US delivery usually takes 3-7 business days. What's your ZIP code? I can give you a closer estimate."
	replyOrderStatus = "Happy to check on that. Please share your order number and the email you used at checkout."
	replySizing      = "I can help with sizing. Which item are you looking at, and what size do you usually wear?"
	replyUnknown     = "Sorry, I'm not sure I can answer that one yet. Please share your email or order number and a teammate will follow up shortly."
)

var cannedReplies = map[Intent]string{
	IntentReturns:     replyReturns,
	IntentShipping:    replyShipping,
	IntentOrderStatus: replyOrderStatus,
	IntentSizing:      replySizing,
	IntentUnknown:     replyUnknown,
}

// BuildReply classifies text and returns the canned first-line reply for it.
// Only the unknown intent is escalated to a human.
func BuildReply(text string) Reply {
	intent := DetectIntent(text)
	reply, ok := cannedReplies[intent]
	if !ok {
		intent = IntentUnknown
		reply = replyUnknown
	}
	return Reply{
		Intent:     intent,
		Reply:      reply,
		NeedsHuman: intent == IntentUnknown,
	}
}
