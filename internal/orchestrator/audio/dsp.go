package audio

import "math"

// Resample converts data from srcRate to dstRate with linear interpolation.
// Equal rates return the input unchanged.
func Resample(data []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(data) == 0 {
		return data
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(data)) / ratio)
	out := make([]float32, n)
	last := len(data) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = data[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = data[idx]*(1-frac) + data[idx+1]*frac
	}
	return out
}

// Normalize scales data so its peak magnitude is NormalizePeak. All-zero input
// is returned unchanged.
func Normalize(data []float32) []float32 {
	peak := Peak(data)
	if peak == 0 {
		return data
	}
	gain := NormalizePeak / peak
	out := make([]float32, len(data))
	for i, s := range data {
		out[i] = float32(float64(s) * gain)
	}
	return out
}

// Peak returns the largest absolute sample value.
func Peak(data []float32) float64 {
	var peak float64
	for _, s := range data {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// NoiseGate zeroes samples whose magnitude is below threshold.
func NoiseGate(data []float32, threshold float64) []float32 {
	out := make([]float32, len(data))
	for i, s := range data {
		if math.Abs(float64(s)) >= threshold {
			out[i] = s
		}
	}
	return out
}

// HighPassFilter applies a single-pole IIR high-pass filter.
func HighPassFilter(data []float32, sampleRate int, cutoffHz float64) []float32 {
	if len(data) == 0 || sampleRate <= 0 || cutoffHz <= 0 {
		return data
	}

	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	alpha := rc / (rc + dt)

	out := make([]float32, len(data))
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = float32(alpha * (float64(out[i-1]) + float64(data[i]) - float64(data[i-1])))
	}
	return out
}
