package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBar(t *testing.T) {
	empty := bar(0)
	assert.Equal(t, barWidth+2, utf8.RuneCountInString(empty))
	assert.True(t, strings.HasPrefix(empty, "[▓░"))

	half := bar(0.5)
	assert.Equal(t, barWidth/2, strings.Count(half, "█"))

	full := bar(1)
	assert.Equal(t, barWidth, strings.Count(full, "█"))
	assert.NotContains(t, full, "░")
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "12.5s", formatSeconds(12.5))
	assert.Equal(t, "2.0m", formatSeconds(120))
	assert.Equal(t, "1.5h", formatSeconds(5400))
}

// TestConsoleReport uses a fake clock to check the rendered line
func TestConsoleReport(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	c := NewConsole(&buf)
	c.start = start
	c.now = func() time.Time { return clock }

	c.Report(0)
	assert.Contains(t, buf.String(), "  0.00%")
	assert.NotContains(t, buf.String(), "elapsed")

	buf.Reset()
	clock = start.Add(10 * time.Second)
	c.Report(0.25)
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "\r["))
	assert.Contains(t, line, " 25.00%")
	assert.Contains(t, line, "10.0s elapsed")
	assert.Contains(t, line, "30.0s remaining")

	buf.Reset()
	c.Report(1.7)
	assert.Contains(t, buf.String(), "100.00%")

	buf.Reset()
	c.Done()
	assert.True(t, strings.HasSuffix(buf.String(), "Done in 10.0s\n"))
}
