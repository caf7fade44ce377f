package engine

import (
	"time"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// PrayerInfo names a prayer and its instant.
type PrayerInfo struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// NextPrayerInfo is the upcoming prayer with the time left until it.
type NextPrayerInfo struct {
	Name      string           `json:"name"`
	Time      time.Time        `json:"time"`
	Remaining prayer.Remaining `json:"remaining"`
	// Tomorrow is set when the next prayer is the following day's Fajr.
	Tomorrow bool `json:"tomorrow"`
}

// CurrentAt returns the prayer whose window [time, next time) holds now,
// scanning Fajr, Dhuhr, Asr, Maghrib and Isha. Sunrise never counts.
//
// Before Fajr the night still belongs to the previous Isha, so Isha is
// returned with its time moved back one day. That instant approximates
// yesterday's Isha without a second calculation.
func CurrentAt(snap *prayer.Snapshot, now time.Time) *PrayerInfo {
	prayers := snap.Obligatory()
	if now.Before(prayers[0].Time) {
		return &PrayerInfo{Name: prayer.Isha, Time: snap.Isha.AddDate(0, 0, -1)}
	}

	current := prayers[0]
	for _, p := range prayers[1:] {
		if now.Before(p.Time) {
			break
		}
		current = p
	}
	return &PrayerInfo{Name: current.Name, Time: current.Time}
}

// NextAt returns the first of Fajr, Sunrise, Dhuhr, Asr, Maghrib and Isha
// strictly after now. After Isha it asks tomorrowFajr for the following
// day's Fajr.
func NextAt(snap *prayer.Snapshot, now time.Time, tomorrowFajr func() (time.Time, error)) (NextPrayerInfo, error) {
	if p := prayer.NextPrayer(snap.Prayers(), now); p != nil {
		return NextPrayerInfo{
			Name:      p.Name,
			Time:      p.Time,
			Remaining: prayer.SplitRemaining(p.Time.Sub(now)),
		}, nil
	}

	fajr, err := tomorrowFajr()
	if err != nil {
		return NextPrayerInfo{}, err
	}
	return NextPrayerInfo{
		Name:      prayer.Fajr,
		Time:      fajr,
		Remaining: prayer.SplitRemaining(fajr.Sub(now)),
		Tomorrow:  true,
	}, nil
}

// snapshotDay returns midnight of the snapshot's calendar date in the zone its
// times are expressed in.
func snapshotDay(snap *prayer.Snapshot) (time.Time, error) {
	return time.ParseInLocation(prayer.DateLayout, snap.Date, snap.Fajr.Location())
}

// nextDay returns midnight of the calendar day after t, in t's location.
func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
