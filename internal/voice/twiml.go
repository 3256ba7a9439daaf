package voice

import (
	"github.com/twilio/twilio-go/twiml"
)

const sayVoice = "Polly.Joanna"

// BuildResponse speaks reply and either keeps listening or, when the turn
// needs a human, dials humanNumber (or hangs up if none is set).
func BuildResponse(reply string, needsHuman bool, actionURL, humanNumber string) []twiml.Element {
	var verbs []twiml.Element
	if reply != "" {
		verbs = append(verbs, &twiml.VoiceSay{Message: reply, Voice: sayVoice})
	}
	switch {
	case !needsHuman:
		verbs = append(verbs, &twiml.VoiceGather{Input: "speech", Action: actionURL, Method: "POST", SpeechTimeout: "auto"})
	case humanNumber != "":
		verbs = append(verbs, &twiml.VoiceDial{Number: humanNumber})
	default:
		verbs = append(verbs, &twiml.VoiceHangup{})
	}
	return verbs
}

// Render produces the TwiML document. No verbs renders an empty Response,
// which Twilio treats as an acknowledgement.
func Render(verbs []twiml.Element) ([]byte, error) {
	doc, err := twiml.Voice(verbs)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}
