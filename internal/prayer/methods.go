package prayer

import "time"

// methodParams fixes the geometry of a calculation method.
type methodParams struct {
	fajrAngle    float64
	ishaAngle    float64
	ishaInterval time.Duration // when non-zero, Isha is this long after Maghrib
	maghribAngle float64       // when non-zero, Maghrib is at this depression instead of sunset
	adjustments  Adjustments   // minute offsets the method itself prescribes
}

var methodTable = map[Method]methodParams{
	MuslimWorldLeague:     {fajrAngle: 18, ishaAngle: 17, adjustments: Adjustments{Dhuhr: 1}},
	Egyptian:              {fajrAngle: 19.5, ishaAngle: 17.5, adjustments: Adjustments{Dhuhr: 1}},
	Karachi:               {fajrAngle: 18, ishaAngle: 18, adjustments: Adjustments{Dhuhr: 1}},
	UmmAlQura:             {fajrAngle: 18.5, ishaInterval: 90 * time.Minute},
	Dubai:                 {fajrAngle: 18.2, ishaAngle: 18.2, adjustments: Adjustments{Sunrise: -3, Dhuhr: 3, Asr: 3, Maghrib: 3}},
	Qatar:                 {fajrAngle: 18, ishaInterval: 90 * time.Minute},
	Kuwait:                {fajrAngle: 18, ishaAngle: 17.5},
	MoonsightingCommittee: {fajrAngle: 18, ishaAngle: 18, adjustments: Adjustments{Dhuhr: 5, Maghrib: 3}},
	Singapore:             {fajrAngle: 20, ishaAngle: 18, adjustments: Adjustments{Dhuhr: 1}},
	Turkey:                {fajrAngle: 18, ishaAngle: 17, adjustments: Adjustments{Sunrise: -7, Dhuhr: 5, Asr: 4, Maghrib: 7}},
	Tehran:                {fajrAngle: 17.7, ishaAngle: 14, maghribAngle: 4.5},
	NorthAmerica:          {fajrAngle: 15, ishaAngle: 15, adjustments: Adjustments{Dhuhr: 1}},
}

// MethodInfo describes a calculation method for listings.
type MethodInfo struct {
	Method    Method
	Name      string
	AlAdhanID int // method parameter of the Al Adhan API
}

// Methods lists the supported calculation methods in display order.
func Methods() []MethodInfo {
	return []MethodInfo{
		{MuslimWorldLeague, "Muslim World League (MWL)", 3},
		{Egyptian, "Egyptian General Authority of Survey", 5},
		{Karachi, "University of Islamic Sciences, Karachi", 1},
		{UmmAlQura, "Umm Al-Qura University, Makkah", 4},
		{Dubai, "Dubai (experimental)", 16},
		{Qatar, "Qatar", 10},
		{Kuwait, "Kuwait", 9},
		{MoonsightingCommittee, "Moonsighting Committee Worldwide", 15},
		{Singapore, "Majlis Ugama Islam Singapura (Singapore)", 11},
		{Turkey, "Diyanet Isleri Baskanligi, Turkey", 13},
		{Tehran, "Institute of Geophysics, University of Tehran", 7},
		{NorthAmerica, "Islamic Society of North America (ISNA)", 2},
	}
}

// Info returns the listing entry for m.
func (m Method) Info() (MethodInfo, bool) {
	for _, info := range Methods() {
		if info.Method == m {
			return info, true
		}
	}
	return MethodInfo{}, false
}
