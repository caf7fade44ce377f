package astro

import (
	"math"
	"testing"
	"time"
)

func TestJulianDay(t *testing.T) {
	tests := []struct {
		y    int
		m    time.Month
		d    int
		want float64
	}{
		{2000, time.January, 1, 2451544.5},
		{1999, time.January, 1, 2451179.5},
		{2026, time.March, 1, 2461100.5},
	}
	for _, tt := range tests {
		if got := JulianDay(tt.y, tt.m, tt.d); got != tt.want {
			t.Errorf("JulianDay(%d-%d-%d) = %v, want %v", tt.y, tt.m, tt.d, got, tt.want)
		}
	}
}

func TestSunPosition_Bounds(t *testing.T) {
	jd := JulianDay(2026, time.January, 1)
	for i := 0; i < 366; i++ {
		pos := SunPosition(jd + float64(i))
		if math.Abs(pos.Declination) > 23.45 {
			t.Fatalf("day %d: declination %v out of range", i, pos.Declination)
		}
		// The equation of time never exceeds about 16.5 minutes.
		if math.Abs(pos.EquationOfTime) > 0.28 {
			t.Fatalf("day %d: equation of time %v out of range", i, pos.EquationOfTime)
		}
	}
}

func TestSunPosition_Solstices(t *testing.T) {
	june := SunPosition(JulianDay(2026, time.June, 21))
	if june.Declination < 23.3 {
		t.Errorf("June solstice declination = %v, want ~23.44", june.Declination)
	}
	dec := SunPosition(JulianDay(2026, time.December, 21))
	if dec.Declination > -23.3 {
		t.Errorf("December solstice declination = %v, want ~-23.44", dec.Declination)
	}
}

func TestTransitGreenwich(t *testing.T) {
	// Solar noon at Greenwich in mid-February runs about 14 minutes late.
	d := NewDay(2026, time.February, 12, 51.4769, 0)
	noon := d.Instant(d.Transit())
	if noon.Hour() != 12 || noon.Minute() < 12 || noon.Minute() > 16 {
		t.Errorf("transit = %s, want ~12:14 UTC", noon.Format("15:04"))
	}
}

func TestTimeAtElevation_RiseBeforeSet(t *testing.T) {
	d := NewDay(2026, time.March, 20, 0, 0)
	rise, ok := d.TimeAtElevation(RiseSetElevation, d.LocalGuess(6), Rising)
	if !ok {
		t.Fatal("no sunrise at the equator")
	}
	set, ok := d.TimeAtElevation(RiseSetElevation, d.LocalGuess(18), Setting)
	if !ok {
		t.Fatal("no sunset at the equator")
	}
	if length := set - rise; length < 12 || length > 12.3 {
		t.Errorf("equinox day length at equator = %vh, want just over 12h", length)
	}
}

func TestTimeAtElevation_PolarNight(t *testing.T) {
	d := NewDay(2026, time.December, 21, 78.2, 15.6)
	if _, ok := d.TimeAtElevation(RiseSetElevation, d.LocalGuess(6), Rising); ok {
		t.Error("expected no sunrise during polar night")
	}
}

func TestAsrHanafiLater(t *testing.T) {
	d := NewDay(2026, time.June, 21, 55.75, 37.62)
	shafi, ok1 := d.Asr(1)
	hanafi, ok2 := d.Asr(2)
	if !ok1 || !ok2 {
		t.Fatal("asr not found")
	}
	if hanafi <= shafi {
		t.Errorf("hanafi asr %v not after shafi %v", hanafi, shafi)
	}
}

func TestNextRollsOverMonth(t *testing.T) {
	d := NewDay(2026, time.January, 31, 0, 0).Next()
	got := d.Instant(0)
	if got.Month() != time.February || got.Day() != 1 {
		t.Errorf("Next() = %s, want 2026-02-01", got.Format("2006-01-02"))
	}
}

func TestInstantNegativeHours(t *testing.T) {
	d := NewDay(2026, time.January, 15, 0, 0)
	got := d.Instant(-1.5)
	want := time.Date(2026, 1, 14, 22, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Instant(-1.5) = %v, want %v", got, want)
	}
}

func TestForDate_TransitOnLocalDate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zone     *time.Location
	}{
		{"moscow", 55.7558, 37.6173, time.FixedZone("MSK", 3*3600)},
		{"apia", -13.8333, -171.7667, time.FixedZone("WSST", 13*3600)},
		{"baker", 0.1936, -176.4769, time.FixedZone("AoE", -12*3600)},
		{"greenwich", 51.4769, 0, time.UTC},
	}
	for _, tt := range tests {
		d := ForDate(2024, time.June, 15, tt.zone, tt.lat, tt.lon)
		noon := d.Instant(d.Transit()).In(tt.zone)
		if noon.Day() != 15 || noon.Hour() < 11 || noon.Hour() > 13 {
			t.Errorf("%s: transit = %s, want around midday on Jun 15", tt.name, noon.Format("Jan 2 15:04"))
		}

		next := d.Next()
		if got := next.Instant(next.Transit()).Sub(d.Instant(d.Transit())); got < 23*time.Hour || got > 25*time.Hour {
			t.Errorf("%s: Next() transit %v after today's, want ~24h", tt.name, got)
		}
	}
}
