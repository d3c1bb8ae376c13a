package pcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// wavHeader is the canonical 44-byte PCM RIFF header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WAVHeaderSize is the size of the header written by EncodeWAV.
const WAVHeaderSize = 44

// EncodeWAV encodes float samples in [-1, 1] as 16-bit little-endian PCM
// inside a RIFF/WAVE container. Out-of-range samples are clipped.
func EncodeWAV(samples []float32, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 {
		channels = 1
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = FloatToInt16(s)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("write wav data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV decodes a 16-bit PCM WAV payload into float samples.
func DecodeWAV(data []byte) (samples []float32, sampleRate, channels int, err error) {
	if len(data) < WAVHeaderSize {
		return nil, 0, 0, fmt.Errorf("wav data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("read wav header: %w", err)
	}
	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, 0, 0, fmt.Errorf("invalid wav: missing RIFF header")
	case string(header.Format[:]) != "WAVE":
		return nil, 0, 0, fmt.Errorf("invalid wav: missing WAVE format")
	case string(header.Subchunk2ID[:]) != "data":
		return nil, 0, 0, fmt.Errorf("invalid wav: missing data chunk")
	case header.AudioFormat != 1:
		return nil, 0, 0, fmt.Errorf("unsupported wav format %d (only PCM)", header.AudioFormat)
	case header.BitsPerSample != 16:
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d (only 16-bit)", header.BitsPerSample)
	}

	body := data[WAVHeaderSize:]
	n := int(header.Subchunk2Size) / 2
	if n > len(body)/2 {
		n = len(body) / 2
	}
	samples = make([]float32, n)
	for i := range n {
		samples[i] = Int16ToFloat(int16(binary.LittleEndian.Uint16(body[i*2:])))
	}
	return samples, int(header.SampleRate), int(header.NumChannels), nil
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// FloatToInt16 converts a sample in [-1, 1] to signed 16-bit, clipping.
func FloatToInt16(s float32) int16 {
	v := math.Max(-1, math.Min(1, float64(s)))
	return int16(math.Round(v * math.MaxInt16))
}

// Int16ToFloat converts a signed 16-bit sample to [-1, 1].
func Int16ToFloat(s int16) float32 {
	return float32(s) / math.MaxInt16
}
