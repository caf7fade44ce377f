package prayer

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Named line formats for status bars and `next`. Each one is a template over
// FormatData; any mode containing "{{" is used as a template itself.
const (
	FormatTimeRemaining      = "time-remaining"
	FormatNextPrayerTime     = "next-prayer-time"
	FormatNameAndTime        = "name-and-time"
	FormatNameAndRemaining   = "name-and-remaining"
	FormatShortNameAndTime   = "short-name-and-time"
	FormatShortNameAndRemain = "short-name-and-remaining"
	FormatCountdownText      = "countdown"
	FormatFull               = "full"
)

var lineFormats = map[string]*template.Template{
	FormatTimeRemaining:      lineTemplate("{{.Remaining}}"),
	FormatNextPrayerTime:     lineTemplate("{{.Time}}"),
	FormatNameAndTime:        lineTemplate("{{.Name}} {{.Time}}"),
	FormatNameAndRemaining:   lineTemplate("{{.Name}} {{.Remaining}}"),
	FormatShortNameAndTime:   lineTemplate("{{.ShortName}} {{.Time}}"),
	FormatShortNameAndRemain: lineTemplate("{{.ShortName}} {{.Remaining}}"),
	FormatCountdownText:      lineTemplate("{{.Name}} {{.Countdown}}"),
	FormatFull:               lineTemplate("{{.Name}} {{.Time}} ({{.Remaining}})"),
}

func lineTemplate(text string) *template.Template {
	return template.Must(template.New("line").Parse(text))
}

// FormatModes lists the named formats in help order.
var FormatModes = []string{
	FormatTimeRemaining, FormatNextPrayerTime, FormatNameAndTime, FormatNameAndRemaining,
	FormatShortNameAndTime, FormatShortNameAndRemain, FormatCountdownText, FormatFull,
}

// FormatData is what a line template sees: the upcoming prayer and the
// countdown to it.
type FormatData struct {
	Name      string // "Asr"
	ShortName string // "A"
	Time      string // prayer time in the caller's layout, "15:02" or "3:02 PM"
	Remaining string // "2h 15m"
	Countdown string // "2 ч 15 мин", as the Mini-App shows it
	Hours     int
	Minutes   int
	Seconds   int
	// TotalSeconds is the whole countdown, for templates that compare.
	TotalSeconds int
}

// NewFormatData describes p as seen at now. A passed prayer counts down
// from zero.
func NewFormatData(p Prayer, now time.Time, layout string) FormatData {
	d := TimeRemaining(p, now)
	r := SplitRemaining(d)
	return FormatData{
		Name:         p.Name,
		ShortName:    ShortNames[p.Name],
		Time:         p.Time.Format(layout),
		Remaining:    FormatRemaining(d),
		Countdown:    FormatCountdown(r),
		Hours:        r.Hours,
		Minutes:      r.Minutes,
		Seconds:      r.Seconds,
		TotalSeconds: r.TotalSeconds,
	}
}

// Render writes d in the given mode. Unknown names fall back to
// name-and-time.
func (d FormatData) Render(mode string) (string, error) {
	t, ok := lineFormats[mode]
	switch {
	case strings.Contains(mode, "{{"):
		var err error
		if t, err = template.New("custom").Parse(mode); err != nil {
			return "", err
		}
	case !ok:
		t = lineFormats[FormatNameAndTime]
	}
	var sb strings.Builder
	if err := t.Execute(&sb, d); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// FormatOutput renders p for a status line. Template errors are shown in
// place of the line as "template-err: ...", since a status bar has nowhere
// else to put them.
func FormatOutput(p Prayer, now time.Time, mode string, timeFormat string) string {
	out, err := NewFormatData(p, now, timeFormat).Render(mode)
	if err != nil {
		return fmt.Sprintf("template-err: %v", err)
	}
	return out
}
