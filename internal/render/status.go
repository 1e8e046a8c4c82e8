package render

import (
	"fmt"
	"math"
	"strings"
)

// Caption is the position label shown under the player.
func Caption(index, count int) string {
	return fmt.Sprintf("Slide %d of %d", index+1, count)
}

// ProgressBar draws progress in [0, 1] as a bar width cells wide.
func ProgressBar(progress float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	filled := int(math.Round(min(progress, 1) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
