package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/engine"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/qibla"
)

// todayView is everything the root command prints.
type todayView struct {
	Snap     *prayer.Snapshot
	Prayers  []prayer.Prayer
	Current  *engine.PrayerInfo
	Next     engine.NextPrayerInfo
	Qibla    qibla.Info
	Zone     *time.Location
	Now      time.Time
	Layout   string
	Degraded bool
}

func runToday(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, degraded, err := refreshToday(cmd.Context(), app)
	if err != nil {
		return err
	}

	names, err := selectedPrayers(app.Config, "")
	if err != nil {
		return err
	}
	prayers, err := snap.Select(names)
	if err != nil {
		return err
	}

	next, err := app.Engine.NextPrayer(snap)
	if err != nil {
		return err
	}
	info, err := qibla.For(snap.Location)
	if err != nil {
		return err
	}

	v := todayView{
		Snap:     snap,
		Prayers:  prayers,
		Current:  app.Engine.CurrentPrayer(snap),
		Next:     next,
		Qibla:    info,
		Zone:     app.Zone,
		Now:      app.Now(),
		Layout:   display.ClockLayout(app.Config.Display.TimeFormat),
		Degraded: degraded,
	}

	if FlagJSON {
		return printTodayJSON(cmd.OutOrStdout(), v)
	}
	printTodayRich(cmd.OutOrStdout(), v)
	return nil
}

// printTodayRich renders the colored terminal output for today's prayer schedule.
func printTodayRich(w io.Writer, v todayView) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold("Prayer Times"))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s\n", v.Snap.Location)
	fmt.Fprintf(w, "  %s\n", v.Zone)
	fmt.Fprintf(w, "  %s\n", v.Now.Format("Monday, 02 January 2006"))
	fmt.Fprintf(w, "  %s\n", methodLine(v.Snap))
	fmt.Fprintf(w, "  Qibla %.1f° %s\n", v.Qibla.BearingDegrees, qibla.Compass(v.Qibla.BearingDegrees))
	if v.Degraded {
		fmt.Fprintf(w, "  %s\n", display.Yellow("Location unavailable, showing saved times"))
	}
	fmt.Fprintln(w)

	sched := display.Schedule{
		Prayers:   v.Prayers,
		Countdown: prayer.FormatCountdown(v.Next.Remaining),
		Layout:    v.Layout,
	}
	// Before Fajr the current prayer is yesterday's Isha, which is not on
	// today's list.
	if v.Current != nil && !v.Current.Time.Before(v.Snap.Fajr) {
		sched.Current = v.Current.Name
	}
	if !v.Next.Tomorrow {
		sched.Next = v.Next.Name
	}
	for _, line := range strings.SplitAfter(sched.Render(), "\n") {
		if line != "" {
			fmt.Fprint(w, "  "+line)
		}
	}

	if v.Next.Tomorrow {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", display.Accent(fmt.Sprintf("Tomorrow's %s at %s, через %s",
			v.Next.Name, v.Next.Time.Format(v.Layout), prayer.FormatCountdown(v.Next.Remaining))))
	}
	fmt.Fprintln(w)
}

func methodLine(snap *prayer.Snapshot) string {
	name := snap.CalculationMethod
	if info, ok := prayer.Method(snap.CalculationMethod).Info(); ok {
		name = info.Name
	}
	return name + ", " + snap.Madhab
}

// todayJSON is the JSON output structure for the root command.
type todayJSON struct {
	Location todayJSONLocation `json:"location"`
	Date     string            `json:"date"`
	Method   string            `json:"method"`
	Madhab   string            `json:"madhab"`
	Timings  map[string]string `json:"timings"`
	Current  string            `json:"current"`
	Next     todayJSONNext     `json:"next"`
	Qibla    todayJSONQibla    `json:"qibla"`
	Degraded bool              `json:"degraded"`
}

type todayJSONLocation struct {
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type todayJSONNext struct {
	Prayer    string `json:"prayer"`
	Time      string `json:"time"`
	Remaining string `json:"remaining"`
	Tomorrow  bool   `json:"tomorrow,omitempty"`
}

type todayJSONQibla struct {
	Bearing float64 `json:"bearing"`
	Compass string  `json:"compass"`
}

// printTodayJSON renders structured JSON output.
func printTodayJSON(w io.Writer, v todayView) error {
	timings := make(map[string]string)
	for _, p := range v.Prayers {
		timings[strings.ToLower(p.Name)] = p.Time.Format(v.Layout)
	}

	out := todayJSON{
		Location: todayJSONLocation{
			Timezone:  v.Zone.String(),
			Latitude:  v.Snap.Location.Latitude,
			Longitude: v.Snap.Location.Longitude,
		},
		Date:    v.Snap.Date,
		Method:  v.Snap.CalculationMethod,
		Madhab:  v.Snap.Madhab,
		Timings: timings,
		Next: todayJSONNext{
			Prayer:    strings.ToLower(v.Next.Name),
			Time:      v.Next.Time.Format(v.Layout),
			Remaining: prayer.FormatRemaining(v.Next.Time.Sub(v.Now)),
			Tomorrow:  v.Next.Tomorrow,
		},
		Qibla: todayJSONQibla{
			Bearing: v.Qibla.BearingDegrees,
			Compass: qibla.Compass(v.Qibla.BearingDegrees),
		},
		Degraded: v.Degraded,
	}
	if v.Current != nil {
		out.Current = strings.ToLower(v.Current.Name)
	}

	return writeJSON(w, out)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
