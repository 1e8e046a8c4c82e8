package playback

import (
	"math"
	"testing"
)

func TestSeekIndex(t *testing.T) {
	cases := []struct {
		fraction float64
		n        int
		want     int
	}{
		{0, 5, 0},
		{0.19, 5, 0},
		{0.2, 5, 1},
		{0.61, 5, 3},
		{0.99, 5, 4},
		{1, 5, 4},
		{1.7, 5, 4},
		{-0.3, 5, 0},
		{math.NaN(), 5, 0},
		{0.5, 1, 0},
	}
	for _, tc := range cases {
		if got := SeekIndex(tc.fraction, tc.n); got != tc.want {
			t.Fatalf("SeekIndex(%v, %d) = %d, want %d", tc.fraction, tc.n, got, tc.want)
		}
	}
}

func TestProgress(t *testing.T) {
	if got := Progress(0, 4); got != 0.25 {
		t.Fatalf("expected 0.25, got %v", got)
	}
	if got := Progress(3, 4); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}
