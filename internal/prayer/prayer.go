package prayer

import (
	"fmt"
	"time"
)

// Prayer represents a single prayer (or sun event) with its name and time.
type Prayer struct {
	Name string
	Time time.Time
}

// Prayer and event names, as surfaced to consumers.
const (
	Fajr    = "Fajr"
	Sunrise = "Sunrise"
	Dhuhr   = "Dhuhr"
	Asr     = "Asr"
	Maghrib = "Maghrib"
	Isha    = "Isha"
	Qiyam   = "Qiyam"
)

// AllPrayerNames lists every time a Snapshot can carry, in chronological order.
var AllPrayerNames = []string{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha, Qiyam}

// DefaultPrayerNames are the times shown and tracked by default.
var DefaultPrayerNames = []string{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// ObligatoryPrayerNames are the five daily prayers. Sunrise is an event marker,
// not a prayer window.
var ObligatoryPrayerNames = []string{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ShortNames maps full prayer names to short abbreviations.
var ShortNames = map[string]string{
	Fajr:    "F",
	Sunrise: "S",
	Dhuhr:   "D",
	Asr:     "A",
	Maghrib: "M",
	Isha:    "I",
	Qiyam:   "Q",
}

// NextPrayer finds the next upcoming prayer from the given slice, relative to now.
// If all prayers have passed, it returns nil (caller should look at tomorrow).
func NextPrayer(prayers []Prayer, now time.Time) *Prayer {
	for i := range prayers {
		if prayers[i].Time.After(now) {
			return &prayers[i]
		}
	}
	return nil
}

// TimeRemaining returns the duration until the given prayer time.
func TimeRemaining(prayer Prayer, now time.Time) time.Duration {
	return prayer.Time.Sub(now)
}

// Remaining is a countdown decomposed into whole hours, minutes and seconds.
type Remaining struct {
	Hours        int `json:"hours"`
	Minutes      int `json:"minutes"`
	Seconds      int `json:"seconds"`
	TotalSeconds int `json:"totalSeconds"`
}

// SplitRemaining decomposes d into a Remaining. Negative durations clamp to zero.
func SplitRemaining(d time.Duration) Remaining {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	return Remaining{
		Hours:        total / 3600,
		Minutes:      (total % 3600) / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
	}
}

// FormatRemaining formats a duration as "Xh Ym" or "Ym" if less than an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "0m"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatCountdown renders a countdown the way the Mini-App shows it:
// "H ч M мин", or "M мин" when less than an hour remains.
func FormatCountdown(r Remaining) string {
	if r.Hours > 0 {
		return fmt.Sprintf("%d ч %d мин", r.Hours, r.Minutes)
	}
	return fmt.Sprintf("%d мин", r.Minutes)
}
