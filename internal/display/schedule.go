package display

import (
	"strings"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// ClockLayout returns the time layout for a "12h" or "24h" time format.
func ClockLayout(format string) string {
	if format == "12h" {
		return "3:04 PM"
	}
	return "15:04"
}

// Schedule is one day's prayer list with the current and next prayer marked.
type Schedule struct {
	Prayers []prayer.Prayer
	// Current and Next are prayer names; either may be empty.
	Current   string
	Next      string
	Countdown string
	Layout    string
}

// Render lists the prayers one per line. The current prayer is marked with
// "▸" and the next one is accented with its countdown.
func (s Schedule) Render() string {
	layout := s.Layout
	if layout == "" {
		layout = ClockLayout("24h")
	}

	width := 0
	for _, p := range s.Prayers {
		width = max(width, len(p.Name))
	}

	var sb strings.Builder
	for _, p := range s.Prayers {
		marker := "  "
		if p.Name == s.Current {
			marker = Green("▸ ")
		}
		line := padRight(p.Name, width) + "  " + p.Time.Format(layout)

		switch p.Name {
		case s.Next:
			line = Accent(line)
			if s.Countdown != "" {
				line += "  " + Yellow("через "+s.Countdown)
			}
		case s.Current:
			line = Bold(line) + "  " + Dim("сейчас")
		}
		sb.WriteString(marker + line + "\n")
	}
	return sb.String()
}
