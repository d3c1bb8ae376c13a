// Package audio conditions captured segments for the transcription service.
package audio

// Conditioning defaults
const (
	// Transcription services are tuned for 16 kHz mono speech
	DefaultTargetSampleRate = 16000

	DefaultHighPassCutoffHz   = 80.0
	DefaultNoiseGateThreshold = 0.01

	// Peak amplitude after normalization, as a fraction of full scale
	NormalizePeak = 0.9

	// Payload size bounds accepted by the transcription service
	MaxPayloadBytes = 25 * 1024 * 1024
	MinPayloadBytes = 1024

	FormatWAV = "wav"
)
