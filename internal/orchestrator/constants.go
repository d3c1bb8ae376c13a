// Package orchestrator runs the listen, transcribe, translate and synthesize
// cycle for one session at a time.
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Silent segments kept ahead of a voice start so the first syllable survives
	DefaultPreRollSegments = 3

	// An utterance this long is submitted even if the speaker has not paused
	DefaultMaxUtterance = 15 * time.Second

	// Trailing silent segments kept after voiceEnded
	TrailingSilenceSegments = 1

	// Transcriptions below this confidence are dropped
	DefaultMinTranscriptConfidence = 0.3

	DefaultPriority = 1

	DefaultTargetLanguage = "es"
	DefaultOutputRouting  = "speakers"
)
