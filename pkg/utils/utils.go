package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var levelStyles = map[string]lipgloss.Style{
	"INFO": badge("87", "16"),
	"WARN": badge("192", "0"),
	"ERRO": badge("204", "0"),
	"DEBU": badge("63", "0"),
}

func badge(bg, fg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Padding(0, 1, 0, 1).
		Bold(true).
		MaxWidth(80).
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(fg))
}

// ColorizeLogs highlights the level tag of each plain log line in place.
func ColorizeLogs(logs []string) []string {
	for i, line := range logs {
		// Only style if not already styled (check for ANSI codes)
		if strings.Contains(line, "\x1b[") {
			continue
		}
		for _, level := range []string{"INFO", "WARN", "ERRO", "DEBU"} {
			if strings.Contains(line, level) {
				logs[i] = strings.Replace(line, level, levelStyles[level].Render(level), 1)
				break
			}
		}
	}
	return logs
}

// FormatTimeLeft renders the time until end, or "Ended" once it has passed.
func FormatTimeLeft(end, now time.Time) string {
	left := end.Sub(now)
	if left < 0 {
		return "Ended"
	}
	left = left.Truncate(time.Minute)
	days := int(left / (24 * time.Hour))
	left -= time.Duration(days) * 24 * time.Hour
	hours := int(left / time.Hour)
	minutes := int((left - time.Duration(hours)*time.Hour) / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// FormatPrice renders a price with two decimals and a dollar sign.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}
