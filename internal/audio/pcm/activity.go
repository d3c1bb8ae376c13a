package pcm

import "time"

// VoiceActivity is the per-segment VAD reading.
type VoiceActivity struct {
	IsActive         bool      `json:"isActive"`
	Confidence       float64   `json:"confidence"`
	Volume           float64   `json:"volume"`
	Energy           float64   `json:"energy"`
	ZeroCrossingRate float64   `json:"zeroCrossingRate"`
	Timestamp        time.Time `json:"timestamp"`
}
