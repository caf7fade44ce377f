package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/config"
	"github.com/smokyabdulrahman/prayer-engine/internal/di"
	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/server"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

// Global flags shared across all subcommands.
var (
	FlagConfig     string
	FlagLatitude   float64
	FlagLongitude  float64
	FlagTimezone   string
	FlagMethod     string
	FlagMadhab     string
	FlagStore      string
	FlagJSON       bool
	FlagTimeFormat string
)

// loadedConfig holds the config loaded during PersistentPreRunE.
// Available to all subcommand handlers.
var loadedConfig *config.Config

// appClock is the time source of every command.
var appClock clock.Clock = clock.New()

// NewRootCmd creates the root command for the prayer-engine CLI.
// The version parameter is set by the calling binary via ldflags.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prayer-engine",
		Short: "Islamic prayer times CLI",
		Long: "Calculates Islamic prayer times and the Qibla direction offline from your location,\n" +
			"tracks the current and next prayer, and serves them over HTTP.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.LoadFrom(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			loadedConfig = cfg
			return display.Configure(cfg.Display.Color, os.Stdout)
		},
		// Default action: show today's prayer schedule.
		RunE:          runToday,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&FlagConfig, "config", "", "Config file (default: ~/.config/prayer-engine/config.yaml)")
	pf.Float64Var(&FlagLatitude, "latitude", 0, "Use this latitude instead of the configured location source")
	pf.Float64Var(&FlagLongitude, "longitude", 0, "Use this longitude instead of the configured location source")
	pf.StringVar(&FlagTimezone, "timezone", "", "IANA time zone for dates and times (default: system zone)")
	pf.StringVar(&FlagMethod, "method", "", "Calculation method name or Al Adhan ID for this run (see 'methods')")
	pf.StringVar(&FlagMadhab, "madhab", "", "Asr madhab for this run: Shafi or Hanafi")
	pf.StringVar(&FlagStore, "store", "", "Store backend: file, memory, redis or postgres")
	pf.BoolVar(&FlagJSON, "json", false, "Output as JSON (where supported)")
	pf.StringVar(&FlagTimeFormat, "time-format", "", "Time format: 12h or 24h (overrides config)")

	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newWeekCmd())
	rootCmd.AddCommand(newMonthCmd())
	rootCmd.AddCommand(newQiblaCmd())
	rootCmd.AddCommand(newMethodsCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVerifyCmd())

	return rootCmd
}

func configPath() (string, error) {
	if FlagConfig != "" {
		return FlagConfig, nil
	}
	return config.Path()
}

// effectiveConfig returns the loaded configuration with CLI flags applied,
// in the priority: CLI flags > environment > config file > defaults.
// It uses cobra's Changed() to detect whether a flag was explicitly set.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg config.Config
	if loadedConfig != nil {
		cfg = *loadedConfig
	} else {
		cfg = config.Defaults()
	}

	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	latSet := flagWasSet(flags, root, "latitude")
	lonSet := flagWasSet(flags, root, "longitude")
	if latSet != lonSet {
		return nil, errors.New("--latitude and --longitude must be given together")
	}
	if latSet {
		cfg.Location.Source = config.SourceStatic
		cfg.Location.Latitude = FlagLatitude
		cfg.Location.Longitude = FlagLongitude
	}
	if flagWasSet(flags, root, "timezone") {
		cfg.Location.Timezone = FlagTimezone
	}
	if flagWasSet(flags, root, "store") {
		cfg.Store.Backend = FlagStore
		if cfg.Store.Backend == store.BackendFile && cfg.Store.Dir == "" {
			dir, err := config.DataDir()
			if err != nil {
				return nil, err
			}
			cfg.Store.Dir = dir
		}
	}
	if flagWasSet(flags, root, "time-format") {
		cfg.Display.TimeFormat = FlagTimeFormat
	}
	if flagWasSet(flags, root, "addr") {
		cfg.Server.Addr = flagAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrides turns --method and --madhab into a settings update that applies
// to this run only.
func overrides(cmd *cobra.Command) (settings.Partial, error) {
	var p settings.Partial
	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()

	if flagWasSet(flags, root, "method") {
		m, err := settings.ParseKey("method", FlagMethod)
		if err != nil {
			return p, err
		}
		p.Method = m.Method
	}
	if flagWasSet(flags, root, "madhab") {
		m, err := settings.ParseKey("madhab", FlagMadhab)
		if err != nil {
			return p, err
		}
		p.Madhab = m.Madhab
	}
	return p, nil
}

// newApp assembles the engine for cmd. Logs go to stderr.
func newApp(cmd *cobra.Command) (*di.App, func(), error) {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	ov, err := overrides(cmd)
	if err != nil {
		return nil, nil, err
	}
	return di.InitializeApp(cmd.Context(), cfg, appClock, ov, cmd.ErrOrStderr())
}

// refreshToday brings the engine up to date for today. The bool reports
// that the times came from the cache because the location was unavailable.
func refreshToday(ctx context.Context, app *di.App) (*prayer.Snapshot, bool, error) {
	snap, err := app.Engine.Refresh(ctx, nil, app.Now())
	if err != nil {
		return nil, false, locationErr(err)
	}
	_, degraded := app.Engine.Snapshot()
	return snap, degraded, nil
}

func locationErr(err error) error {
	if errors.Is(err, geo.ErrLocationUnavailable) {
		return fmt.Errorf("%s: %w", server.MsgLocationUnavailable, err)
	}
	return err
}

// selectedPrayers returns the prayers to show: the flag value when given,
// then the config, then the defaults.
func selectedPrayers(cfg *config.Config, flagValue string) ([]string, error) {
	list := cfg.Display.Prayers
	if flagValue != "" {
		list = flagValue
	}
	if list == "" {
		return prayer.DefaultPrayerNames, nil
	}
	return config.ParsePrayers(list)
}

// flagWasSet checks if a flag was explicitly set on either the local or persistent flag set.
func flagWasSet(local, persistent *pflag.FlagSet, name string) bool {
	if f := local.Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := persistent.Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}
