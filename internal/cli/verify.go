package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/aladhan"
	"github.com/smokyabdulrahman/prayer-engine/internal/display"
)

var (
	flagAPIURL    string
	flagTolerance time.Duration
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare today's times with the Al Adhan API",
		Long: "Fetch today's timings from the Al Adhan API for the same location, method and madhab,\n" +
			"and show how far the local calculation is from them. Fails when any prayer differs by\n" +
			"more than the tolerance.",
		Args: cobra.NoArgs,
		RunE: runVerify,
	}
	cmd.Flags().StringVar(&flagAPIURL, "api-url", "", "Al Adhan API base URL")
	cmd.Flags().DurationVar(&flagTolerance, "tolerance", 2*time.Minute, "Largest accepted difference per prayer")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, _, err := refreshToday(cmd.Context(), app)
	if err != nil {
		return err
	}

	client := aladhan.NewClient()
	if flagAPIURL != "" {
		client.BaseURL = flagAPIURL
	}
	resp, err := client.Fetch(cmd.Context(), aladhan.Query{
		Date:        app.Now(),
		Coordinates: snap.Location,
		Settings:    app.Active.Get(),
		Timezone:    app.Config.Location.Timezone,
	})
	if err != nil {
		return err
	}

	// Reference times are wall clock times in the zone the API answered in.
	zone := app.Zone
	if tz := resp.Data.Meta.Timezone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			zone = loc
		}
	}
	diffs, err := aladhan.Compare(snap, resp.Data.Timings, zone)
	if err != nil {
		return err
	}

	layout := display.ClockLayout(app.Config.Display.TimeFormat)
	worst := aladhan.MaxDelta(diffs)
	if FlagJSON {
		if err := printVerifyJSON(cmd, snap.Date, diffs, resp, layout); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", display.Bold("Local vs Al Adhan"))
		fmt.Fprintf(w, "  %s  %s\n", snap.Date, resp.Data.Date.Hijri.Format())
		fmt.Fprintf(w, "  %s (%s)\n", methodLine(snap), zone)
		fmt.Fprintln(w)

		tbl := display.NewTable([]string{"Prayer", "Local", "Al Adhan", "Δ"})
		for i, d := range diffs {
			tbl.AddRow([]string{d.Name, d.Local.Format(layout), d.Reference.In(zone).Format(layout), formatDelta(d.Delta())})
			if worst > flagTolerance && d.Delta().Abs() == worst {
				tbl.SetHighlightRow(i)
			}
		}
		fmt.Fprint(w, tbl.Render())
		fmt.Fprintln(w)
	}

	if worst > flagTolerance {
		return fmt.Errorf("local times differ from Al Adhan by up to %s (tolerance %s)", worst, flagTolerance)
	}
	return nil
}

func formatDelta(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m > 0 {
		return fmt.Sprintf("+%dm", m)
	}
	return fmt.Sprintf("%dm", m)
}

type verifyJSON struct {
	Date    string           `json:"date"`
	Hijri   string           `json:"hijri,omitempty"`
	Prayers []verifyJSONDiff `json:"prayers"`
}

type verifyJSONDiff struct {
	Prayer       string `json:"prayer"`
	Local        string `json:"local"`
	Reference    string `json:"reference"`
	DeltaMinutes int    `json:"deltaMinutes"`
}

func printVerifyJSON(cmd *cobra.Command, date string, diffs []aladhan.Diff, resp *aladhan.Response, layout string) error {
	out := verifyJSON{Date: date, Hijri: resp.Data.Date.Hijri.Format()}
	for _, d := range diffs {
		out.Prayers = append(out.Prayers, verifyJSONDiff{
			Prayer:       d.Name,
			Local:        d.Local.Format(layout),
			Reference:    d.Reference.Format(layout),
			DeltaMinutes: int(d.Delta().Round(time.Minute) / time.Minute),
		})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
