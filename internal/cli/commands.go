package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-engine/internal/config"
	"github.com/smokyabdulrahman/prayer-engine/internal/display"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/qibla"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or modify configuration",
		Long:  "Display current configuration, or use subcommands to modify it.\nWhen run without subcommands, shows the current configuration.",
		RunE:  runConfigShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: "Set a configuration value. Run 'config keys' for the valid keys.\n\nExamples:\n" +
			"  prayer-engine config set location.source static\n" +
			"  prayer-engine config set location.latitude 55.7558\n" +
			"  prayer-engine config set display.time_format 12h\n" +
			"  prayer-engine config set display.prayers Fajr,Dhuhr,Asr,Maghrib,Isha",
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List config keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset config to defaults",
		Long:  "Delete the config file and restore all settings to defaults.",
		RunE:  runConfigReset,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print config file path",
		RunE:  runConfigPath,
	})

	return cmd
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	values, err := config.Values(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "  Configuration (%s)\n\n", path)
	for _, key := range config.Keys() {
		val := fmt.Sprint(values[key])
		if strings.Contains(key, "password") && val != "" {
			val = "********"
		}
		if val == "" {
			val = display.Gray("(not set)")
		}
		fmt.Fprintf(w, "  %-26s %s\n", key, val)
	}
	return nil
}

// runConfigSet sets a config key to the given value.
func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.Set(path, key, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

// runConfigReset deletes the config file.
func runConfigReset(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := config.Reset(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
	return nil
}

// runConfigPath prints the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change calculation settings",
		Long: "Display the saved calculation settings, or use subcommands to change them.\n" +
			"Settings are kept in the configured store and apply to every command and the HTTP API.",
		RunE: runSettingsShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a calculation setting",
		Long: fmt.Sprintf("Change a calculation setting. Valid keys: %s\n\nExamples:\n"+
			"  prayer-engine settings set method UmmAlQura\n"+
			"  prayer-engine settings set madhab Hanafi\n"+
			"  prayer-engine settings set high_latitude_rule SeventhOfTheNight\n"+
			"  prayer-engine settings set adjust.isha 5",
			strings.Join(settings.ValidKeys, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: runSettingsSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE:  runSettingsReset,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where settings are stored",
		RunE:  runSettingsPath,
	})

	return cmd
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := app.Settings.Get()
	if FlagJSON {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	printSettings(cmd, s)
	return nil
}

func printSettings(cmd *cobra.Command, s prayer.Settings) {
	w := cmd.OutOrStdout()
	method := string(s.Method)
	if info, ok := s.Method.Info(); ok {
		method = fmt.Sprintf("%s (%s, ID %d)", s.Method, info.Name, info.AlAdhanID)
	}
	fmt.Fprintf(w, "  %-20s %s\n", "method", method)
	fmt.Fprintf(w, "  %-20s %s\n", "madhab", s.Madhab)
	fmt.Fprintf(w, "  %-20s %s\n", "high_latitude_rule", s.HighLatitudeRule)
	for _, name := range prayer.DefaultPrayerNames {
		fmt.Fprintf(w, "  %-20s %s\n", "adjust."+strings.ToLower(name), formatMinutes(s.Adjustments.Get(name)))
	}
}

func formatMinutes(m int) string {
	if m > 0 {
		return "+" + strconv.Itoa(m) + " min"
	}
	return strconv.Itoa(m) + " min"
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	key, value := args[0], args[1]
	if _, err := app.Settings.SetKey(cmd.Context(), key, value); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	app.Settings.Reset(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults.")
	return nil
}

func runSettingsPath(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch cfg.Store.Backend {
	case store.BackendFile:
		fmt.Fprintln(w, cfg.Store.Dir)
	case store.BackendRedis:
		fmt.Fprintf(w, "redis://%s/%d %s%s\n", cfg.Store.RedisAddr, cfg.Store.RedisDB, cfg.Store.KeyPrefix, settings.Key)
	case store.BackendPostgres:
		fmt.Fprintf(w, "postgres %s\n", settings.Key)
	default:
		fmt.Fprintf(w, "%s (not persisted)\n", cfg.Store.Backend)
	}
	return nil
}

func newQiblaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qibla",
		Short: "Show the Qibla direction",
		Long:  "Display the great-circle bearing from your location to the Kaaba, clockwise from true north.",
		Args:  cobra.NoArgs,
		RunE:  runQibla,
	}
}

type qiblaJSON struct {
	qibla.Info
	Compass string `json:"compass"`
}

func runQibla(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, _, err := refreshToday(cmd.Context(), app)
	if err != nil {
		return err
	}
	info, err := qibla.For(snap.Location)
	if err != nil {
		return err
	}
	compass := qibla.Compass(info.BearingDegrees)

	if FlagJSON {
		return writeJSON(cmd.OutOrStdout(), qiblaJSON{Info: info, Compass: compass})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Qibla: %.1f° (%s) from %s\n", info.BearingDegrees, compass, info.Location)
	return nil
}

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List all calculation methods",
		Long:  "Print the table of supported calculation methods with their Al Adhan IDs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Supported calculation methods:")
			fmt.Fprintln(w)
			tbl := display.NewTable([]string{"ID", "Method", "Name"})
			for _, m := range prayer.Methods() {
				tbl.AddRow([]string{strconv.Itoa(m.AlAdhanID), string(m.Method), m.Name})
			}
			fmt.Fprint(w, tbl.Render())
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Use --method <Method or ID> for one run, or 'settings set method' to keep it.")
			return nil
		},
	}
}
