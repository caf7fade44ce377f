package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

var (
	flagFormat  string
	flagPrayers string
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next prayer with countdown",
		Long:  "Display the next upcoming prayer time with a countdown, on one line for status bars.",
		RunE:  runNext,
	}

	cmd.Flags().StringVar(&flagFormat, "format", prayer.FormatFull,
		"Display format: "+strings.Join(prayer.FormatModes, ", ")+", or a custom Go template")
	cmd.Flags().StringVar(&flagPrayers, "prayers", "", "Comma-separated list of prayers to track (overrides config)")

	return cmd
}

func runNext(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	flagValue := ""
	if cmd.Flags().Changed("prayers") {
		flagValue = flagPrayers
	}
	names, err := selectedPrayers(app.Config, flagValue)
	if err != nil {
		return err
	}
	layout := display.ClockLayout(app.Config.Display.TimeFormat)

	snap, _, err := refreshToday(cmd.Context(), app)
	if err != nil {
		return err
	}
	now := app.Now()

	prayers, err := snap.Select(names)
	if err != nil {
		return err
	}
	next := prayer.NextPrayer(prayers, now)

	// If all today's prayers have passed, take tomorrow's first one.
	if next == nil {
		tomorrow, calcErr := prayer.Calculate(snap.Location, now.AddDate(0, 0, 1), app.Active.Get())
		if calcErr != nil {
			// Show the last prayer with a "done" indicator rather than
			// breaking the status bar.
			if len(prayers) > 0 && errors.Is(calcErr, prayer.ErrNoSunriseSunset) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s --:--", prayers[len(prayers)-1].Name)
				return nil
			}
			return fmt.Errorf("failed to calculate tomorrow's times: %w", calcErr)
		}
		tomorrowPrayers, err := tomorrow.Select(names)
		if err != nil {
			return err
		}
		if len(tomorrowPrayers) > 0 {
			next = &tomorrowPrayers[0]
		}
	}

	if next == nil {
		return errors.New("could not determine next prayer")
	}

	line, err := prayer.NewFormatData(*next, now, layout).Render(flagFormat)
	if err != nil {
		return fmt.Errorf("bad --format: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), line)
	return nil
}
