package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders a bar like [████░░░░]  45% for a percentage in
// 0..100. Out-of-range values are clamped.
func RenderProgress(pct float64, width int) string {
	pct = min(max(pct, 0), 100)
	if width < 2 {
		width = 2
	}
	filled := min(int(pct/100*float64(width)), width)
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)
	return fmt.Sprintf("[%s] %4.0f%%", PercentStyle(pct).Render(bar), pct)
}

// Percent renders a colored percentage with one decimal.
func Percent(pct float64) string {
	return PercentStyle(pct).Render(fmt.Sprintf("%5.1f%%", pct))
}
