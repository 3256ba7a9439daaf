package quality

import "fmt"

const (
	transportBase = 86

	sseBonus          = 4
	sseMissingPenalty = 4
	firstTokenSlowPen = 24
	firstTokenModPen  = 14
	totalSlowPen      = 16
	totalModPen       = 8
	fallbackPenalty   = 10
	mosPoorPenalty    = 20
	mosFairPenalty    = 8
	jitterPenalty     = 10
	packetLossPenalty = 14
	roundTripPenalty  = 8
)

const (
	recReduceLatency   = "Reduce first-token latency: trim prompt context and keep the streaming path warm."
	recMonitorFallback = "Monitor model fallback rate and alert when the primary provider degrades."
	recVoiceInsights   = "Set Twilio Voice Insights alerts for calls with MOS below target."
	recRegionReview    = "Review the Twilio edge region for affected callers and add per-region call quality monitoring."
)

// ScoreTransport scores response latency and voice network telemetry. Absent
// fields do not contribute.
func ScoreTransport(in TransportInput, th Thresholds) Layer {
	th = th.withDefaults()
	var acc collector
	score := transportBase

	if in.UsedSSE != nil {
		if *in.UsedSSE {
			score += sseBonus
			acc.reason("Streaming (SSE) response path active.")
		} else {
			score -= sseMissingPenalty
			acc.reason("Fallback (non-streaming) response path used.")
		}
	}

	if in.FirstTokenMs != nil {
		ms := *in.FirstTokenMs
		switch {
		case ms > th.FirstTokenSlowMs:
			score -= firstTokenSlowPen
			acc.reason(fmt.Sprintf("First token is slow (%.0fms > %.0fms).", ms, th.FirstTokenSlowMs))
			acc.recommend(recReduceLatency)
		case ms > th.FirstTokenModerateMs:
			score -= firstTokenModPen
			acc.reason(fmt.Sprintf("First token is moderate (%.0fms > %.0fms).", ms, th.FirstTokenModerateMs))
		default:
			acc.reason(fmt.Sprintf("First token latency is healthy (%.0fms).", ms))
		}
	}

	if in.TotalResponseMs != nil {
		ms := *in.TotalResponseMs
		switch {
		case ms > th.TotalSlowMs:
			score -= totalSlowPen
			acc.reason(fmt.Sprintf("Total response time is slow (%.0fms > %.0fms).", ms, th.TotalSlowMs))
		case ms > th.TotalModerateMs:
			score -= totalModPen
			acc.reason(fmt.Sprintf("Total response time is elevated (%.0fms > %.0fms).", ms, th.TotalModerateMs))
		}
	}

	if in.FallbackUsed {
		score -= fallbackPenalty
		acc.reason("Model fallback was used for this turn.")
		acc.recommend(recMonitorFallback)
	}

	if tw := in.Twilio; tw != nil {
		if tw.MOS != nil {
			mos := *tw.MOS
			switch {
			case mos < th.MOSPoor:
				score -= mosPoorPenalty
				acc.reason(fmt.Sprintf("Voice MOS is poor (%.2f < %.1f).", mos, th.MOSPoor))
				acc.recommend(recVoiceInsights)
			case mos < th.MOSFair:
				score -= mosFairPenalty
				acc.reason(fmt.Sprintf("Voice MOS is fair (%.2f < %.1f).", mos, th.MOSFair))
			}
		}
		if tw.JitterMs != nil && *tw.JitterMs > th.JitterMs {
			score -= jitterPenalty
			acc.reason(fmt.Sprintf("Voice jitter is high (%.0fms > %.0fms).", *tw.JitterMs, th.JitterMs))
		}
		if tw.PacketLossPct != nil && *tw.PacketLossPct > th.PacketLossPct {
			score -= packetLossPenalty
			acc.reason(fmt.Sprintf("Packet loss is high (%.1f%% > %.1f%%).", *tw.PacketLossPct, th.PacketLossPct))
		}
		if tw.RoundTripMs != nil && *tw.RoundTripMs > th.RoundTripMs {
			score -= roundTripPenalty
			acc.reason(fmt.Sprintf("Round-trip time is high (%.0fms > %.0fms).", *tw.RoundTripMs, th.RoundTripMs))
		}
		// Checked once, against the score after all voice penalties.
		if score < th.RegionReviewScore {
			acc.recommend(recRegionReview)
		}
	}

	return acc.layer(Clamp(score))
}
