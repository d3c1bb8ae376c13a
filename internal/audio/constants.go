// Package audio owns the microphone capture stream and the playback sink.
// Both are singletons for the lifetime of the process.
package audio

import "time"

// Device defaults
const (
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultChunkDuration   = 100 * time.Millisecond
	DefaultFramesPerBuffer = 1024
	DefaultBufferSize      = 100 // segments held before capture drops
)

// Device sources
const (
	SourceUser   = "user"
	SourceSystem = "system"
)

var (
	systemKeywords    = []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"}
	micKeywords       = []string{"microphone", "input", "mic", "built-in"}
	preferredKeywords = []string{"macbook", "built-in"}
)
