// Command tmux-prayer-times prints the next prayer on one line for a tmux
// status bar. It shares the prayer-engine config, settings and cache, so a
// status bar keeps working from saved times while the location is unknown.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/config"
	"github.com/smokyabdulrahman/prayer-engine/internal/di"
	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0"
var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, clock.New()); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command line flags.
type options struct {
	configPath  string
	latitude    float64
	longitude   float64
	timezone    string
	method      string
	madhab      string
	format      string
	timeFormat  string
	prayers     string
	dataDir     string
	showVersion bool
	listMethods bool
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("tmux-prayer-times", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "Config file (default: ~/.config/prayer-engine/config.yaml)")
	fs.Float64Var(&o.latitude, "latitude", 0, "Latitude for prayer time calculation")
	fs.Float64Var(&o.longitude, "longitude", 0, "Longitude for prayer time calculation")
	fs.StringVar(&o.timezone, "timezone", "", "IANA time zone (default: config, then system zone)")
	fs.StringVar(&o.method, "method", "", "Calculation method name or Al Adhan ID (default: saved settings)")
	fs.StringVar(&o.madhab, "madhab", "", "Asr madhab: Shafi or Hanafi (default: saved settings)")
	fs.StringVar(&o.format, "format", prayer.FormatNameAndTime,
		"Display format: "+strings.Join(prayer.FormatModes, ", ")+
			", or a custom Go template (e.g. '{{.Name}} in {{.Remaining}}'). "+
			"Template fields: .Name, .ShortName, .Time, .Remaining, .Countdown, .Hours, .Minutes")
	fs.StringVar(&o.timeFormat, "time-format", "", "Time format: 12h or 24h (default: config)")
	fs.StringVar(&o.prayers, "prayers", "", "Comma-separated list of prayers to track (default: Fajr,Sunrise,Dhuhr,Asr,Maghrib,Isha)")
	fs.StringVar(&o.dataDir, "data-dir", "", "Directory for saved settings and times (default: ~/.local/share/prayer-engine/)")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&o.listMethods, "list-methods", false, "Print supported calculation methods and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, clk clock.Clock) error {
	o, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if o.showVersion {
		fmt.Fprintf(stdout, "tmux-prayer-times %s\n", version)
		return nil
	}
	if o.listMethods {
		printMethods(stdout)
		return nil
	}

	cfg, err := loadConfig(o, fs)
	if err != nil {
		return err
	}
	ov, err := overrides(o)
	if err != nil {
		return err
	}

	app, cleanup, err := di.InitializeApp(ctx, cfg, clk, ov, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	names := prayer.DefaultPrayerNames
	list := cfg.Display.Prayers
	if o.prayers != "" {
		list = o.prayers
	}
	if list != "" {
		if names, err = config.ParsePrayers(list); err != nil {
			return err
		}
	}

	out, err := nextLine(ctx, app, names, o.format, display.ClockLayout(cfg.Display.TimeFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, out)
	return nil
}

// printMethods prints the table of supported calculation methods.
func printMethods(w io.Writer) {
	fmt.Fprintln(w, "Supported calculation methods:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-4s %-22s %s\n", "ID", "Method", "Name")
	fmt.Fprintf(w, "  %-4s %-22s %s\n", "──", "──────", "────")
	for _, m := range prayer.Methods() {
		fmt.Fprintf(w, "  %-4d %-22s %s\n", m.AlAdhanID, m.Method, m.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use --method <Method or ID> to select a calculation method.")
	fmt.Fprintln(w, "If omitted, the saved settings apply (Muslim World League by default).")
}

// loadConfig reads the shared config file and applies the flags on top. The
// status bar logs only errors.
func loadConfig(o *options, fs *pflag.FlagSet) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	path := o.configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if fs.Changed("latitude") != fs.Changed("longitude") {
		return nil, errors.New("--latitude and --longitude must be given together")
	}
	if fs.Changed("latitude") {
		cfg.Location.Source = config.SourceStatic
		cfg.Location.Latitude = o.latitude
		cfg.Location.Longitude = o.longitude
	}
	if o.timezone != "" {
		cfg.Location.Timezone = o.timezone
	}
	if o.timeFormat != "" {
		cfg.Display.TimeFormat = o.timeFormat
	}
	if o.dataDir != "" {
		cfg.Store.Dir = o.dataDir
	}
	cfg.Logger.Level = "error"
	cfg.Metrics.Enabled = false
	cfg.Notify.MQTT.Enabled = false

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrides(o *options) (settings.Partial, error) {
	var p settings.Partial
	if o.method != "" {
		s, err := settings.ParseKey("method", o.method)
		if err != nil {
			return p, err
		}
		p.Method = s.Method
	}
	if o.madhab != "" {
		s, err := settings.ParseKey("madhab", o.madhab)
		if err != nil {
			return p, err
		}
		p.Madhab = s.Madhab
	}
	return p, nil
}

// nextLine renders the next of names after now. Once every prayer of the day
// has passed it looks at tomorrow's first one.
func nextLine(ctx context.Context, app *di.App, names []string, format, layout string) (string, error) {
	now := app.Now()
	snap, err := app.Engine.Refresh(ctx, nil, now)
	if err != nil {
		return "", err
	}
	prayers, err := snap.Select(names)
	if err != nil {
		return "", err
	}

	next := prayer.NextPrayer(prayers, now)
	if next == nil {
		tomorrow, err := prayer.Calculate(snap.Location, now.AddDate(0, 0, 1), app.Active.Get())
		if err != nil {
			// Keep the status bar readable on polar days.
			if len(prayers) > 0 && errors.Is(err, prayer.ErrNoSunriseSunset) {
				return prayers[len(prayers)-1].Name + " --:--", nil
			}
			return "", fmt.Errorf("failed to calculate tomorrow's times: %w", err)
		}
		tomorrowPrayers, err := tomorrow.Select(names)
		if err != nil {
			return "", err
		}
		if len(tomorrowPrayers) > 0 {
			next = &tomorrowPrayers[0]
		}
	}
	if next == nil {
		return "", errors.New("could not determine next prayer")
	}

	return prayer.FormatOutput(*next, now, format, layout), nil
}
