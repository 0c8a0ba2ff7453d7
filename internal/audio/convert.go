package audio

// Int16ToFloat32 normalises samples to [-1, 1).
func Int16ToFloat32(block []int16) []float32 {
	out := make([]float32, len(block))
	for i, s := range block {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// DownmixInterleaved averages interleaved channels into one mono frame each.
// The result is always a new slice.
func DownmixInterleaved(in []float32, channels, frames int) []float32 {
	if channels <= 1 {
		out := make([]float32, frames)
		copy(out, in)
		return out
	}

	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += in[f*channels+ch]
		}
		out[f] = sum / float32(channels)
	}
	return out
}

// ToMonoFloat32 converts an interleaved 16-bit block to mono float32.
func ToMonoFloat32(block []int16, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	return DownmixInterleaved(Int16ToFloat32(block), channels, len(block)/channels)
}
