package prayer

import (
	"errors"
	"fmt"
	"time"

	"github.com/smokyabdulrahman/prayer-engine/internal/astro"
)

// DateLayout is the calendar-date format used for snapshot dates and cache keys.
const DateLayout = "2006-01-02"

// ErrNoSunriseSunset is returned when the sun does not rise or set on the
// requested date (polar day or polar night), so no prayer day can be built.
var ErrNoSunriseSunset = errors.New("sun does not rise or set on this date")

// Snapshot holds one calendar day's prayer times for one location.
// It is never mutated; a new calculation produces a new Snapshot.
type Snapshot struct {
	Date              string      `json:"date"`
	Location          Coordinates `json:"location"`
	Fajr              time.Time   `json:"fajr"`
	Sunrise           time.Time   `json:"sunrise"`
	Dhuhr             time.Time   `json:"dhuhr"`
	Asr               time.Time   `json:"asr"`
	Maghrib           time.Time   `json:"maghrib"`
	Isha              time.Time   `json:"isha"`
	Qiyam             *time.Time  `json:"qiyam,omitempty"`
	CalculationMethod string      `json:"calculationMethod"`
	Madhab            string      `json:"madhab"`
}

// Prayers returns Fajr through Isha, including Sunrise, in chronological order.
func (s *Snapshot) Prayers() []Prayer {
	return []Prayer{
		{Name: Fajr, Time: s.Fajr},
		{Name: Sunrise, Time: s.Sunrise},
		{Name: Dhuhr, Time: s.Dhuhr},
		{Name: Asr, Time: s.Asr},
		{Name: Maghrib, Time: s.Maghrib},
		{Name: Isha, Time: s.Isha},
	}
}

// Obligatory returns the five daily prayers in order, without Sunrise.
func (s *Snapshot) Obligatory() []Prayer {
	return []Prayer{
		{Name: Fajr, Time: s.Fajr},
		{Name: Dhuhr, Time: s.Dhuhr},
		{Name: Asr, Time: s.Asr},
		{Name: Maghrib, Time: s.Maghrib},
		{Name: Isha, Time: s.Isha},
	}
}

// Select returns the named times in the order given. Qiyam is skipped when absent.
func (s *Snapshot) Select(names []string) ([]Prayer, error) {
	byName := map[string]time.Time{
		Fajr: s.Fajr, Sunrise: s.Sunrise, Dhuhr: s.Dhuhr,
		Asr: s.Asr, Maghrib: s.Maghrib, Isha: s.Isha,
	}
	if s.Qiyam != nil {
		byName[Qiyam] = *s.Qiyam
	}

	var out []Prayer
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			if name == Qiyam {
				continue
			}
			return nil, fmt.Errorf("unknown prayer name: %s", name)
		}
		out = append(out, Prayer{Name: name, Time: t})
	}
	return out, nil
}

// In returns a copy with every instant expressed in loc.
func (s *Snapshot) In(loc *time.Location) *Snapshot {
	c := *s
	c.Fajr = s.Fajr.In(loc)
	c.Sunrise = s.Sunrise.In(loc)
	c.Dhuhr = s.Dhuhr.In(loc)
	c.Asr = s.Asr.In(loc)
	c.Maghrib = s.Maghrib.In(loc)
	c.Isha = s.Isha.In(loc)
	if s.Qiyam != nil {
		q := s.Qiyam.In(loc)
		c.Qiyam = &q
	}
	return &c
}

// dayTimes are the six computed instants of a single day.
type dayTimes struct {
	fajr, sunrise, dhuhr, asr, maghrib, isha time.Time
}

// Calculate computes the prayer times of the calendar day that date falls on
// in date's location. The returned instants are expressed in that location.
//
// Invalid coordinates fail fast with ErrInvalidCoordinates. Locations where the
// sun neither rises nor sets on that day fail with ErrNoSunriseSunset.
func Calculate(coords Coordinates, date time.Time, s Settings) (*Snapshot, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	loc := date.Location()
	y, m, d := date.Date()
	day := astro.ForDate(y, m, d, loc, coords.Latitude, coords.Longitude)

	today, err := computeDay(day, s)
	if err != nil {
		return nil, fmt.Errorf("calculate %s: %w", date.Format(DateLayout), err)
	}
	tomorrow, err := computeDay(day.Next(), s)
	if err != nil {
		return nil, fmt.Errorf("calculate %s: %w", date.AddDate(0, 0, 1).Format(DateLayout), err)
	}

	night := tomorrow.fajr.Sub(today.maghrib)
	qiyam := today.maghrib.Add(night * 2 / 3).Round(time.Minute).In(loc)

	return &Snapshot{
		Date:              date.Format(DateLayout),
		Location:          coords,
		Fajr:              today.fajr.In(loc),
		Sunrise:           today.sunrise.In(loc),
		Dhuhr:             today.dhuhr.In(loc),
		Asr:               today.asr.In(loc),
		Maghrib:           today.maghrib.In(loc),
		Isha:              today.isha.In(loc),
		Qiyam:             &qiyam,
		CalculationMethod: string(s.Method),
		Madhab:            string(s.Madhab),
	}, nil
}

// computeDay resolves the six instants for one astro.Day, applying the
// high-latitude rule, method offsets and user adjustments.
func computeDay(day astro.Day, s Settings) (dayTimes, error) {
	p := methodTable[s.Method]

	sunrise, okRise := day.TimeAtElevation(astro.RiseSetElevation, day.LocalGuess(6), astro.Rising)
	sunset, okSet := day.TimeAtElevation(astro.RiseSetElevation, day.LocalGuess(18), astro.Setting)
	if !okRise || !okSet {
		return dayTimes{}, ErrNoSunriseSunset
	}

	next := day.Next()
	nextSunrise, ok := next.TimeAtElevation(astro.RiseSetElevation, next.LocalGuess(6), astro.Rising)
	if !ok {
		return dayTimes{}, ErrNoSunriseSunset
	}
	night := nextSunrise + 24 - sunset

	fajr, ok := day.TimeAtElevation(-p.fajrAngle, day.LocalGuess(5), astro.Rising)
	if !ok {
		fajr = sunrise - s.HighLatitudeRule.portion(p.fajrAngle)*night
	}

	maghrib := sunset
	if p.maghribAngle > 0 {
		if h, ok := day.TimeAtElevation(-p.maghribAngle, sunset, astro.Setting); ok {
			maghrib = h
		}
	}

	// The night portion is counted from Maghrib, which is later than sunset
	// for methods with a Maghrib angle, so Isha always follows Maghrib.
	var isha float64
	if p.ishaInterval > 0 {
		isha = maghrib + p.ishaInterval.Hours()
	} else if isha, ok = day.TimeAtElevation(-p.ishaAngle, day.LocalGuess(20), astro.Setting); !ok {
		isha = maghrib + s.HighLatitudeRule.portion(p.ishaAngle)*night
	}

	asr, ok := day.Asr(s.Madhab.ShadowFactor())
	if !ok {
		return dayTimes{}, ErrNoSunriseSunset
	}

	finish := func(hours float64, name string) time.Time {
		offset := p.adjustments.Get(name) + s.Adjustments.Get(name)
		t := day.Instant(hours).Add(time.Duration(offset) * time.Minute)
		return t.Round(time.Minute)
	}

	return dayTimes{
		fajr:    finish(fajr, Fajr),
		sunrise: finish(sunrise, Sunrise),
		dhuhr:   finish(day.Transit(), Dhuhr),
		asr:     finish(asr, Asr),
		maghrib: finish(maghrib, Maghrib),
		isha:    finish(isha, Isha),
	}, nil
}
