package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/engine"
)

var flagAddr string

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the engine with a live countdown",
		Long: "Track the current and next prayer until interrupted. A line is printed whenever the\n" +
			"countdown changes; prayer notifications fire at their times and the schedule rolls\n" +
			"over at local midnight.",
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	layout := display.ClockLayout(app.Config.Display.TimeFormat)
	w := cmd.OutOrStdout()
	var (
		mu   sync.Mutex
		last string
	)
	err = app.Engine.Start(ctx, func(c engine.Countdown) {
		line := countdownLine(c, layout)
		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(w, line)
	})
	if err != nil {
		return locationErr(err)
	}

	app.Logger.Info().Msg("watching prayer times, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// countdownLine renders one tick, e.g. "Dhuhr · Asr 14:11 через 1 ч 11 мин".
func countdownLine(c engine.Countdown, layout string) string {
	line := ""
	if c.Current != nil {
		line = c.Current.Name + " · "
	}
	if c.Next == nil {
		line += "next prayer unknown"
	} else {
		line += fmt.Sprintf("%s %s через %s", c.Next.Name, c.Next.Time.Format(layout), c.Text)
	}
	if c.Degraded {
		line += " (saved times)"
	}
	return line
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve prayer times over HTTP",
		Long: "Run the engine and the HTTP API the Mini-App reads from:\n" +
			"  GET   /health\n" +
			"  GET   /api/prayer-times?lat=&lon=&date=&tz=\n" +
			"  GET   /api/prayer-times/next\n" +
			"  GET   /api/qibla\n" +
			"  GET   /api/settings\n" +
			"  PATCH /api/settings\n" +
			"  GET   /metrics",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// Requests with explicit coordinates work without a location, so a
	// failed start is not fatal. The engine keeps trying in the background
	// so that the rollover and notifications come up once a location does.
	if err := app.Engine.StartWithRetry(ctx, nil, engine.DefaultRetryInterval); err != nil {
		app.Logger.Warn().Err(err).Dur("retry_in", engine.DefaultRetryInterval).
			Msg("engine start failed; serving without a current location")
	}
	return app.Server.Run(ctx)
}
