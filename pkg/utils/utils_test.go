package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeLeft(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Ended", FormatTimeLeft(now.Add(-time.Second), now))
	assert.Equal(t, "0m", FormatTimeLeft(now, now))
	assert.Equal(t, "45m", FormatTimeLeft(now.Add(45*time.Minute+30*time.Second), now))
	assert.Equal(t, "2h 5m", FormatTimeLeft(now.Add(2*time.Hour+5*time.Minute), now))
	assert.Equal(t, "3d 1h 0m", FormatTimeLeft(now.Add(73*time.Hour), now))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$5000.00", FormatPrice(5000))
	assert.Equal(t, "$12.35", FormatPrice(12.345001))
}

func TestColorizeLogsKeepsText(t *testing.T) {
	logs := []string{"INFO Job done", "plain line"}
	out := ColorizeLogs(logs)

	assert.Contains(t, out[0], "Job done")
	assert.True(t, strings.Contains(out[0], "INFO"))
	assert.Equal(t, "plain line", out[1])
}
