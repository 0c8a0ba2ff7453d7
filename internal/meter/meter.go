// Package meter measures the energy of 16-bit PCM blocks.
package meter

import "math"

// FullScale is the largest magnitude representable by a signed 16-bit sample.
const FullScale = 32768.0

// epsilon keeps DBFS finite for digital silence.
const epsilon = 1e-9

// RMS returns the root-mean-square sample value of block, or 0 when empty.
func RMS(block []int16) float64 {
	if len(block) == 0 {
		return 0
	}
	var acc float64
	for _, s := range block {
		v := float64(s)
		acc += v * v
	}
	return math.Sqrt(acc / float64(len(block)))
}

// DBFS returns the block level in decibels relative to full scale.
func DBFS(block []int16) float64 {
	return 20 * math.Log10((RMS(block)+epsilon)/FullScale)
}

// Peak returns the largest absolute sample value in block.
func Peak(block []int16) float64 {
	var peak float64
	for _, s := range block {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}
