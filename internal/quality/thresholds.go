package quality

// Thresholds configures the transport scorer. The defaults are product
// choices; change them only with a stated requirement.
type Thresholds struct {
	FirstTokenSlowMs     float64 `json:"first_token_slow_ms"`
	FirstTokenModerateMs float64 `json:"first_token_moderate_ms"`
	TotalSlowMs          float64 `json:"total_slow_ms"`
	TotalModerateMs      float64 `json:"total_moderate_ms"`
	MOSPoor              float64 `json:"mos_poor"`
	MOSFair              float64 `json:"mos_fair"`
	JitterMs             float64 `json:"jitter_ms"`
	PacketLossPct        float64 `json:"packet_loss_pct"`
	RoundTripMs          float64 `json:"round_trip_ms"`
	RegionReviewScore    int     `json:"region_review_score"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FirstTokenSlowMs:     2500,
		FirstTokenModerateMs: 1500,
		TotalSlowMs:          7000,
		TotalModerateMs:      4500,
		MOSPoor:              3.5,
		MOSFair:              4.0,
		JitterMs:             30,
		PacketLossPct:        1.5,
		RoundTripMs:          260,
		RegionReviewScore:    72,
	}
}

// withDefaults fills zero fields so a partially configured value still
// scores sanely.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.FirstTokenSlowMs <= 0 {
		t.FirstTokenSlowMs = d.FirstTokenSlowMs
	}
	if t.FirstTokenModerateMs <= 0 {
		t.FirstTokenModerateMs = d.FirstTokenModerateMs
	}
	if t.TotalSlowMs <= 0 {
		t.TotalSlowMs = d.TotalSlowMs
	}
	if t.TotalModerateMs <= 0 {
		t.TotalModerateMs = d.TotalModerateMs
	}
	if t.MOSPoor <= 0 {
		t.MOSPoor = d.MOSPoor
	}
	if t.MOSFair <= 0 {
		t.MOSFair = d.MOSFair
	}
	if t.JitterMs <= 0 {
		t.JitterMs = d.JitterMs
	}
	if t.PacketLossPct <= 0 {
		t.PacketLossPct = d.PacketLossPct
	}
	if t.RoundTripMs <= 0 {
		t.RoundTripMs = d.RoundTripMs
	}
	if t.RegionReviewScore <= 0 {
		t.RegionReviewScore = d.RegionReviewScore
	}
	return t
}
