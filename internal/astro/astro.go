// Package astro implements the solar geometry behind prayer time calculation:
// declination, equation of time, solar transit, and the instant the sun
// reaches a given elevation on the rising or setting side of the sky.
//
// All event times are expressed as UT hours after 0h UT of a civil date and
// converted to instants with Day.Instant. Angles are in degrees.
package astro

import (
	"math"
	"time"
)

// RiseSetElevation is the apparent sun elevation at sunrise and sunset,
// accounting for refraction and the solar disc radius.
const RiseSetElevation = -0.833

// refineIterations is how many times an event time is recomputed using the
// sun position at the previous estimate.
const refineIterations = 3

// Direction selects the morning or evening crossing of an elevation.
type Direction int

const (
	Rising Direction = iota
	Setting
)

// Position holds the sun's declination (degrees) and the equation of time (hours).
type Position struct {
	Declination    float64
	EquationOfTime float64
}

// JulianDay returns the Julian day at 0h UT of the given civil date.
func JulianDay(year int, month time.Month, day int) float64 {
	y, m := year, int(month)
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := 2 - a + a/4
	return math.Floor(365.25*float64(y+4716)) + math.Floor(30.6001*float64(m+1)) +
		float64(day) + float64(b) - 1524.5
}

// SunPosition computes the low-precision solar coordinates for a Julian day.
// Accuracy is about one arc-minute between 1950 and 2050.
func SunPosition(jd float64) Position {
	d := jd - 2451545.0

	g := normalizeDegrees(357.529 + 0.98560028*d)
	q := normalizeDegrees(280.459 + 0.98564736*d)
	l := normalizeDegrees(q + 1.915*sin(g) + 0.020*sin(2*g))
	e := 23.439 - 0.00000036*d

	ra := math.Atan2(cos(e)*sin(l), cos(l)) * radToDeg / 15
	ra = math.Mod(ra+24, 24)
	decl := math.Asin(sin(e)*sin(l)) * radToDeg

	eqt := q/15 - ra
	eqt = math.Mod(eqt+12, 24)
	if eqt < 0 {
		eqt += 24
	}
	eqt -= 12

	return Position{Declination: decl, EquationOfTime: eqt}
}

// Day evaluates solar events for one civil date at one observer.
type Day struct {
	year      int
	month     time.Month
	day       int
	jd0       float64
	latitude  float64
	longitude float64
	// shift moves mean solar time by whole days so events fall on the
	// zone's civil date rather than the UT one.
	shift float64
}

// NewDay prepares event calculations for the civil date y-m-d at the given
// observer latitude and longitude.
func NewDay(year int, month time.Month, day int, latitude, longitude float64) Day {
	return Day{
		year:      year,
		month:     month,
		day:       day,
		jd0:       JulianDay(year, month, day),
		latitude:  latitude,
		longitude: longitude,
	}
}

// ForDate prepares event calculations for the civil date y-m-d as kept in
// loc. The UT day and its solar noon are chosen so that solar noon lands
// within twelve hours of noon on that date in loc. This matters where the
// zone offset is far from longitude/15, e.g. Pacific/Apia at +13 and -171.8.
func ForDate(year int, month time.Month, day int, loc *time.Location, latitude, longitude float64) Day {
	noon := time.Date(year, month, day, 12, 0, 0, 0, loc).UTC()
	d := NewDay(noon.Year(), noon.Month(), noon.Day(), latitude, longitude)

	zoneNoon := float64(noon.Hour()) + float64(noon.Minute())/60
	meanNoon := 12 - longitude/15
	d.shift = 24 * math.Round((zoneNoon-meanNoon)/24)
	return d
}

// Next returns the same observer one civil day later.
func (d Day) Next() Day {
	t := time.Date(d.year, d.month, d.day+1, 0, 0, 0, 0, time.UTC)
	next := NewDay(t.Year(), t.Month(), t.Day(), d.latitude, d.longitude)
	next.shift = d.shift
	return next
}

// LocalGuess converts a local mean solar hour (e.g. 5 for "around dawn") into
// UT hours for this observer, a starting point for the refining calculations.
func (d Day) LocalGuess(hour float64) float64 {
	return hour - d.longitude/15 + d.shift
}

// noon is apparent solar noon in UT hours for the given equation of time.
func (d Day) noon(eqt float64) float64 {
	return 12 - eqt - d.longitude/15 + d.shift
}

func (d Day) position(hours float64) Position {
	return SunPosition(d.jd0 + hours/24)
}

func (d Day) transitAt(hours float64) float64 {
	return d.noon(d.position(hours).EquationOfTime)
}

// Transit returns solar noon in UT hours.
func (d Day) Transit() float64 {
	t := d.LocalGuess(12)
	for i := 0; i < refineIterations; i++ {
		t = d.transitAt(t)
	}
	return t
}

// TimeAtElevation returns the UT hour at which the sun reaches elevation on
// the given side of the sky. ok is false when the sun never reaches that
// elevation on this date (polar day or night, or a twilight that never ends).
func (d Day) TimeAtElevation(elevation, guess float64, dir Direction) (hours float64, ok bool) {
	t := guess
	for i := 0; i < refineIterations; i++ {
		pos := d.position(t)
		h, ok := hourAngle(d.latitude, pos.Declination, elevation)
		if !ok {
			return 0, false
		}
		noon := d.noon(pos.EquationOfTime)
		if dir == Rising {
			t = noon - h
		} else {
			t = noon + h
		}
	}
	return t, true
}

// Asr returns the UT hour when an object's shadow is factor times its length
// plus its shadow at noon. factor is 1 for the Shafi school and 2 for Hanafi.
func (d Day) Asr(factor float64) (hours float64, ok bool) {
	t := d.LocalGuess(15)
	for i := 0; i < refineIterations; i++ {
		elev := d.AsrElevation(factor, t)
		t, ok = d.TimeAtElevation(elev, t, Setting)
		if !ok {
			return 0, false
		}
	}
	return t, true
}

// AsrElevation returns the sun elevation that produces the Asr shadow length
// for the given shadow factor at UT hour at.
func (d Day) AsrElevation(factor, at float64) float64 {
	decl := d.position(at).Declination
	return math.Atan(1/(factor+math.Tan(math.Abs(d.latitude-decl)*degToRad))) * radToDeg
}

// Instant converts UT hours after 0h UT of the civil date into a time.Time.
// Hours outside [0, 24) land on the neighbouring UT day.
func (d Day) Instant(hours float64) time.Time {
	base := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(hours * float64(time.Hour)))
}

// hourAngle returns the hour angle, in hours, at which the sun with the given
// declination stands at elevation for an observer at latitude.
func hourAngle(latitude, declination, elevation float64) (float64, bool) {
	c := (sin(elevation) - sin(latitude)*sin(declination)) / (cos(latitude) * cos(declination))
	if math.IsNaN(c) || c < -1 || c > 1 {
		return 0, false
	}
	return math.Acos(c) * radToDeg / 15, true
}

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

func sin(deg float64) float64 { return math.Sin(deg * degToRad) }
func cos(deg float64) float64 { return math.Cos(deg * degToRad) }

func normalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
