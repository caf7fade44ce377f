package prayer

import (
	"fmt"
	"strconv"
	"strings"
)

// Method selects the twilight angles (or fixed intervals) used for Fajr and Isha.
type Method string

const (
	MuslimWorldLeague     Method = "MuslimWorldLeague"
	Egyptian              Method = "Egyptian"
	Karachi               Method = "Karachi"
	UmmAlQura             Method = "UmmAlQura"
	Dubai                 Method = "Dubai"
	Qatar                 Method = "Qatar"
	Kuwait                Method = "Kuwait"
	MoonsightingCommittee Method = "MoonsightingCommittee"
	Singapore             Method = "Singapore"
	Turkey                Method = "Turkey"
	Tehran                Method = "Tehran"
	NorthAmerica          Method = "NorthAmerica"
)

// Madhab selects the Asr shadow-length factor.
type Madhab string

const (
	Shafi  Madhab = "Shafi"
	Hanafi Madhab = "Hanafi"
)

// ShadowFactor returns the Asr shadow multiplier: 1 for Shafi, 2 for Hanafi.
func (m Madhab) ShadowFactor() float64 {
	if m == Hanafi {
		return 2
	}
	return 1
}

// HighLatitudeRule decides Fajr and Isha when the twilight angle is never reached.
type HighLatitudeRule string

const (
	MiddleOfTheNight  HighLatitudeRule = "MiddleOfTheNight"
	SeventhOfTheNight HighLatitudeRule = "SeventhOfTheNight"
	TwilightAngle     HighLatitudeRule = "TwilightAngle"
)

// portion returns the fraction of the night used for a twilight of angle degrees.
func (r HighLatitudeRule) portion(angle float64) float64 {
	switch r {
	case SeventhOfTheNight:
		return 1.0 / 7.0
	case TwilightAngle:
		return angle / 60.0
	default:
		return 0.5
	}
}

// Adjustments are per-prayer offsets in minutes, applied after all other computation.
type Adjustments struct {
	Fajr    int `json:"fajr"`
	Sunrise int `json:"sunrise"`
	Dhuhr   int `json:"dhuhr"`
	Asr     int `json:"asr"`
	Maghrib int `json:"maghrib"`
	Isha    int `json:"isha"`
}

// Get returns the adjustment for a prayer name; unknown names yield 0.
func (a Adjustments) Get(name string) int {
	switch name {
	case Fajr:
		return a.Fajr
	case Sunrise:
		return a.Sunrise
	case Dhuhr:
		return a.Dhuhr
	case Asr:
		return a.Asr
	case Maghrib:
		return a.Maghrib
	case Isha:
		return a.Isha
	}
	return 0
}

// With returns a copy with the adjustment for name set to minutes.
func (a Adjustments) With(name string, minutes int) (Adjustments, error) {
	switch strings.ToLower(name) {
	case "fajr":
		a.Fajr = minutes
	case "sunrise":
		a.Sunrise = minutes
	case "dhuhr":
		a.Dhuhr = minutes
	case "asr":
		a.Asr = minutes
	case "maghrib":
		a.Maghrib = minutes
	case "isha":
		a.Isha = minutes
	default:
		return a, fmt.Errorf("unknown prayer %q for adjustment", name)
	}
	return a, nil
}

// Settings are the calculation parameters the user controls.
type Settings struct {
	Method           Method           `json:"method"`
	Madhab           Madhab           `json:"madhab"`
	HighLatitudeRule HighLatitudeRule `json:"highLatitudeRule"`
	Adjustments      Adjustments      `json:"adjustmentsMinutes"`
}

// DefaultSettings returns Muslim World League, Shafi, middle of the night and
// no adjustments.
func DefaultSettings() Settings {
	return Settings{
		Method:           MuslimWorldLeague,
		Madhab:           Shafi,
		HighLatitudeRule: MiddleOfTheNight,
	}
}

// Validate reports an unknown method, madhab or high-latitude rule.
func (s Settings) Validate() error {
	if _, ok := methodTable[s.Method]; !ok {
		return fmt.Errorf("unknown calculation method %q", s.Method)
	}
	if s.Madhab != Shafi && s.Madhab != Hanafi {
		return fmt.Errorf("unknown madhab %q", s.Madhab)
	}
	switch s.HighLatitudeRule {
	case MiddleOfTheNight, SeventhOfTheNight, TwilightAngle:
	default:
		return fmt.Errorf("unknown high latitude rule %q", s.HighLatitudeRule)
	}
	return nil
}

// ParseMethod accepts a method name (case-insensitive) or its Al Adhan method ID.
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		for _, info := range Methods() {
			if info.AlAdhanID == id {
				return info.Method, nil
			}
		}
		return "", fmt.Errorf("invalid method %q: no method with Al Adhan ID %d", s, id)
	}
	for _, info := range Methods() {
		if strings.EqualFold(string(info.Method), s) {
			return info.Method, nil
		}
	}
	return "", fmt.Errorf("invalid method %q: see `methods` for the supported list", s)
}

// ParseMadhab accepts "Shafi"/"Hanafi" (case-insensitive) or the school number 0/1.
func ParseMadhab(s string) (Madhab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shafi", "0":
		return Shafi, nil
	case "hanafi", "1":
		return Hanafi, nil
	}
	return "", fmt.Errorf("invalid madhab %q: must be Shafi (0) or Hanafi (1)", s)
}

// ParseHighLatitudeRule accepts a rule name, case-insensitive.
func ParseHighLatitudeRule(s string) (HighLatitudeRule, error) {
	for _, r := range []HighLatitudeRule{MiddleOfTheNight, SeventhOfTheNight, TwilightAngle} {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid high latitude rule %q: must be MiddleOfTheNight, SeventhOfTheNight or TwilightAngle", s)
}
