package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

const noTime = "--:--"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [days]",
		Short: "Show prayer times for multiple days",
		Long:  "Display a grid of prayer times for N days (default: 7).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, 7)
		},
	}
}

func newWeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week",
		Short: "Show prayer times for the next 7 days",
		Long:  "Alias for 'list 7'. Display a grid of prayer times for 7 days.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 7)
		},
	}
}

func newMonthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "month",
		Short: "Show prayer times for the next 30 days",
		Long:  "Alias for 'list 30'. Display a grid of prayer times for 30 days.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, nil, 30)
		},
	}
}

// dayData holds a single day's times for list output. Prayers is nil on days
// the sun does not rise or set.
type dayData struct {
	Date    time.Time
	Prayers []prayer.Prayer
}

// runList is the handler for the list subcommand.
func runList(cmd *cobra.Command, args []string, defaultDays int) error {
	days := defaultDays
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid number of days: %q (must be a positive integer)", args[0])
		}
		days = n
	}

	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	names, err := selectedPrayers(app.Config, "")
	if err != nil {
		return err
	}
	layout := display.ClockLayout(app.Config.Display.TimeFormat)

	// Today goes through the engine so the location falls back to the cache.
	snap, _, err := refreshToday(cmd.Context(), app)
	if err != nil {
		return err
	}

	daysList, err := calculateDays(snap, app.Now(), days, names, app.Active.Get())
	if err != nil {
		return err
	}

	if FlagJSON {
		return printListJSON(cmd.OutOrStdout(), snap.Location, app.Zone, daysList, layout)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", display.Bold(fmt.Sprintf("Prayer Times — %d Days", days)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", snap.Location)
	fmt.Fprintln(w)

	headers := []string{"Date"}
	headers = append(headers, names...)
	tbl := display.NewTable(headers)
	for i, dd := range daysList {
		row := []string{dd.Date.Format("Mon 02 Jan")}
		for j := range names {
			if dd.Prayers == nil || j >= len(dd.Prayers) {
				row = append(row, noTime)
				continue
			}
			row = append(row, dd.Prayers[j].Time.Format(layout))
		}
		tbl.AddRow(row)
		if i == 0 {
			tbl.SetHighlightRow(i)
		}
	}

	fmt.Fprint(w, tbl.Render())
	fmt.Fprintln(w)
	return nil
}

// calculateDays returns days consecutive days starting with today's snapshot.
func calculateDays(today *prayer.Snapshot, start time.Time, days int, names []string, s prayer.Settings) ([]dayData, error) {
	out := make([]dayData, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		snap := today
		if i > 0 {
			var err error
			snap, err = prayer.Calculate(today.Location, date, s)
			if errors.Is(err, prayer.ErrNoSunriseSunset) {
				out = append(out, dayData{Date: date})
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		prayers, err := snap.Select(names)
		if err != nil {
			return nil, err
		}
		out = append(out, dayData{Date: date, Prayers: prayers})
	}
	return out, nil
}

// listJSONOutput is the JSON structure for the list command.
type listJSONOutput struct {
	Location todayJSONLocation `json:"location"`
	Days     []listJSONDay     `json:"days"`
}

type listJSONDay struct {
	Date    string            `json:"date"`
	Timings map[string]string `json:"timings"`
}

func printListJSON(w io.Writer, loc prayer.Coordinates, zone *time.Location, daysList []dayData, layout string) error {
	out := listJSONOutput{
		Location: todayJSONLocation{
			Timezone:  zone.String(),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		},
	}

	for _, dd := range daysList {
		timings := make(map[string]string)
		for _, p := range dd.Prayers {
			timings[strings.ToLower(p.Name)] = p.Time.Format(layout)
		}
		out.Days = append(out.Days, listJSONDay{
			Date:    dd.Date.Format(prayer.DateLayout),
			Timings: timings,
		})
	}

	return writeJSON(w, out)
}
