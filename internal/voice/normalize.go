// Package voice turns third-party voice webhooks into support turns and
// renders TwiML replies.
package voice

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tikozap/backend/internal/quality"
)

const (
	ShapeGather    = "gather"
	ShapeInsights  = "insights"
	ShapeTelemetry = "telemetry"
	ShapeUnknown   = "unknown"
)

type Event struct {
	CallSID    string                 `json:"call_sid"`
	From       string                 `json:"from"`
	Transcript string                 `json:"transcript"`
	Confidence *float64               `json:"confidence,omitempty"`
	Metrics    *quality.TwilioMetrics `json:"metrics,omitempty"`
	Shape      string                 `json:"shape"`
}

// Aliases are matched after normKey; earlier entries win.
var (
	callSIDKeys    = []string{"callsid", "sid"}
	fromKeys       = []string{"from", "caller", "callerid"}
	transcriptKeys = []string{"speechresult", "transcript", "transcriptiontext", "text"}
	confidenceKeys = []string{"confidence", "speechconfidence"}

	mosKeys        = []string{"mos", "mosscore", "metrics.mos", "mos.avg"}
	jitterKeys     = []string{"jitterms", "jitter", "jitter.avg"}
	packetLossKeys = []string{"packetlosspct", "packetlosspercentage", "packetloss"}
	roundTripKeys  = []string{"roundtripms", "roundtriptime", "rtt", "rtt.avg", "roundtriptime.avg"}
)

// FromForm converts a form-encoded webhook into a payload map.
func FromForm(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Normalize sniffs the payload shape and extracts a transcript plus any
// voice quality metrics. Missing metrics stay nil.
func Normalize(payload map[string]any) Event {
	flat := map[string]any{}
	flatten("", payload, flat)

	ev := Event{
		CallSID:    stringValue(lookup(flat, callSIDKeys)),
		From:       stringValue(lookup(flat, fromKeys)),
		Transcript: strings.TrimSpace(stringValue(lookup(flat, transcriptKeys))),
		Confidence: floatValue(lookup(flat, confidenceKeys)),
	}

	m := &quality.TwilioMetrics{
		MOS:           floatValue(lookup(flat, mosKeys)),
		JitterMs:      floatValue(lookup(flat, jitterKeys)),
		PacketLossPct: floatValue(lookup(flat, packetLossKeys)),
		RoundTripMs:   floatValue(lookup(flat, roundTripKeys)),
	}
	if !m.Empty() {
		ev.Metrics = m
	}

	ev.Shape = sniffShape(flat, ev)
	return ev
}

func sniffShape(flat map[string]any, ev Event) string {
	if _, ok := flat["speechresult"]; ok {
		return ShapeGather
	}
	for k := range flat {
		if strings.Contains(k, ".") {
			return ShapeInsights
		}
	}
	if ev.Metrics != nil || ev.Transcript != "" {
		return ShapeTelemetry
	}
	return ShapeUnknown
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := normKey(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func normKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// lookup tries exact keys first, then dotted suffixes in sorted key order.
func lookup(flat map[string]any, aliases []string) any {
	for _, a := range aliases {
		if v, ok := flat[a]; ok && v != nil {
			return v
		}
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, a := range aliases {
		for _, k := range keys {
			if strings.HasSuffix(k, "."+a) && flat[k] != nil {
				return flat[k]
			}
		}
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func floatValue(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
