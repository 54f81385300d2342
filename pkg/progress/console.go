// Package progress renders smoothing progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// barWidth is the width of the progress bar in cells
const barWidth = 40

// Console writes a single, continuously rewritten progress line
type Console struct {
	w     io.Writer
	start time.Time
	now   func() time.Time
}

// NewConsole creates a console progress renderer writing to w
func NewConsole(w io.Writer) *Console {
	c := &Console{w: w, now: time.Now}
	c.start = c.now()
	return c
}

// Report renders the completion fraction. It has the signature of
// loess.ProgressFunc.
func (c *Console) Report(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	fmt.Fprintf(c.w, "\r%s %6.2f%%%s", bar(fraction), fraction*100, c.timing(fraction))
}

// Done terminates the progress line
func (c *Console) Done() {
	elapsed := c.now().Sub(c.start)
	fmt.Fprintf(c.w, "\r%s 100.00%% Done in %.1fs\n", bar(1), elapsed.Seconds())
}

// timing formats elapsed and estimated remaining time
func (c *Console) timing(fraction float64) string {
	if fraction <= 0 {
		return ""
	}
	elapsed := c.now().Sub(c.start)
	if fraction >= 1 {
		return fmt.Sprintf(" [%s elapsed]", formatSeconds(elapsed.Seconds()))
	}
	remaining := elapsed.Seconds() / fraction * (1 - fraction)
	return fmt.Sprintf(" [%s elapsed | %s remaining]", formatSeconds(elapsed.Seconds()), formatSeconds(remaining))
}

// bar builds the visual progress bar
func bar(fraction float64) string {
	filled := int(fraction * barWidth)

	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			b.WriteString("█") // Solid block for completed portions
		case i == filled:
			b.WriteString("▓") // Lighter block for current position
		default:
			b.WriteString("░") // Light block for remaining portions
		}
	}
	b.WriteByte(']')
	return b.String()
}

// formatSeconds formats a duration based on its magnitude
func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
