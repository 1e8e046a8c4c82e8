package playback

import "math"

// SeekIndex maps a position on the progress bar, expressed as a fraction of
// its width, to a slide index in [0, n-1]. Out-of-range and NaN fractions
// are clamped. n must be positive.
func SeekIndex(fraction float64, n int) int {
	if n <= 0 {
		return 0
	}
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return n - 1
	}
	idx := int(math.Floor(fraction * float64(n)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// Progress returns the filled share of the progress bar for slide index of n.
func Progress(index, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(index+1) / float64(n)
}
