package aladhan

import (
	"fmt"
	"strings"
	"time"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// Diff is one prayer's local time next to the reference time.
type Diff struct {
	Name      string
	Local     time.Time
	Reference time.Time
}

// Delta is Local minus Reference.
func (d Diff) Delta() time.Duration {
	return d.Local.Sub(d.Reference)
}

// Compare lines snap up against the reference timings, prayer by prayer.
// Reference times are read as wall clock times on snap's date in loc.
func Compare(snap *prayer.Snapshot, ref Timings, loc *time.Location) ([]Diff, error) {
	date, err := time.ParseInLocation(prayer.DateLayout, snap.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot date %q: %w", snap.Date, err)
	}

	refs := map[string]string{
		prayer.Fajr:    ref.Fajr,
		prayer.Sunrise: ref.Sunrise,
		prayer.Dhuhr:   ref.Dhuhr,
		prayer.Asr:     ref.Asr,
		prayer.Maghrib: ref.Maghrib,
		prayer.Isha:    ref.Isha,
	}

	var diffs []Diff
	for _, p := range snap.Prayers() {
		raw := refs[p.Name]
		t, err := parseTimeStr(raw, date, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse time for %s (%q): %w", p.Name, raw, err)
		}
		// An Isha past midnight is reported as an early-morning wall time.
		if p.Name == prayer.Isha && t.Before(date.Add(12*time.Hour)) {
			t = t.AddDate(0, 0, 1)
		}
		diffs = append(diffs, Diff{Name: p.Name, Local: p.Time.In(loc), Reference: t})
	}
	return diffs, nil
}

// MaxDelta returns the largest absolute difference in diffs.
func MaxDelta(diffs []Diff) time.Duration {
	var worst time.Duration
	for _, d := range diffs {
		delta := d.Delta()
		if delta < 0 {
			delta = -delta
		}
		if delta > worst {
			worst = delta
		}
	}
	return worst
}

// parseTimeStr parses "HH:MM" or "HH:MM (TZ)" on the given date.
func parseTimeStr(raw string, date time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, " "); idx != -1 {
		s = s[:idx]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %q", raw)
	}

	var hour, min int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return time.Time{}, fmt.Errorf("invalid hour in %q: %w", raw, err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &min); err != nil {
		return time.Time{}, fmt.Errorf("invalid minute in %q: %w", raw, err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, min, 0, 0, loc), nil
}
