// Package config loads the prayer-engine configuration.
//
// Configuration is read from YAML at ~/.config/prayer-engine/config.yaml
// (XDG-compliant) or an explicit --config path. An optional .env file is
// loaded first, and PRAYER_* environment variables override file values:
// PRAYER_STORE_BACKEND overrides store.backend, and so on. The merge priority
// is: CLI flags > environment > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/smokyabdulrahman/prayer-engine/internal/notify"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

const (
	appDirName     = "prayer-engine"
	configFileName = "config.yaml"
	envPrefix      = "PRAYER"
)

// Location sources.
const (
	SourceIP     = "ip"
	SourceStatic = "static"
	SourceNone   = "none"
	SourceDenied = "denied"
)

type LocationConfig struct {
	Source        string        `mapstructure:"source" validate:"required|in:ip,static,none,denied"`
	Latitude      float64       `mapstructure:"latitude" validate:"min:-90|max:90"`
	Longitude     float64       `mapstructure:"longitude" validate:"min:-180|max:180"`
	Timezone      string        `mapstructure:"timezone"`
	IPURL         string        `mapstructure:"ip_url" validate:"required|fullUrl"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"required|min:1"`
	WatchInterval time.Duration `mapstructure:"watch_interval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Format string `mapstructure:"format" validate:"required|in:auto,json,console"`
}

type EngineConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval" validate:"required|min:1"`
	Notifications bool          `mapstructure:"notifications"`
	WatchLocation bool          `mapstructure:"watch_location"`
}

type MQTTConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	notify.MQTTConfig `mapstructure:",squash"`
}

type NotifyConfig struct {
	Log  bool       `mapstructure:"log"`
	MQTT MQTTConfig `mapstructure:"mqtt"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DisplayConfig struct {
	TimeFormat string `mapstructure:"time_format" validate:"required|in:12h,24h"`
	Prayers    string `mapstructure:"prayers"`
	Color      string `mapstructure:"color" validate:"required|in:auto,always,never"`
}

// Config holds all user-configurable settings.
type Config struct {
	Location LocationConfig `mapstructure:"location"`
	Store    store.Config   `mapstructure:"store"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	Display  DisplayConfig  `mapstructure:"display"`

	// Path is the file the config was read from; empty when none existed.
	Path string `mapstructure:"-"`
}

// defaults are registered with viper so every key is known to AutomaticEnv.
func defaults() map[string]any {
	return map[string]any{
		"location.source":         SourceIP,
		"location.latitude":       0.0,
		"location.longitude":      0.0,
		"location.timezone":       "",
		"location.ip_url":         "http://ip-api.com/json/",
		"location.timeout":        10 * time.Second,
		"location.watch_interval": 30 * time.Second,

		"store.backend":        store.BackendFile,
		"store.dir":            "",
		"store.compress":       false,
		"store.memory_mb":      8,
		"store.redis_addr":     "localhost:6379",
		"store.redis_username": "",
		"store.redis_password": "",
		"store.redis_db":       0,
		"store.key_prefix":     "prayer-engine:",
		"store.postgres_url":   "",

		"logger.level":  "info",
		"logger.format": "auto",

		"engine.tick_interval":  time.Second,
		"engine.notifications":  true,
		"engine.watch_location": false,

		"notify.log":             true,
		"notify.mqtt.enabled":    false,
		"notify.mqtt.broker_url": "tcp://localhost:1883",
		"notify.mqtt.client_id":  "prayer-engine",
		"notify.mqtt.topic":      "prayer-engine/notifications",
		"notify.mqtt.qos":        1,
		"notify.mqtt.username":   "",
		"notify.mqtt.password":   "",

		"metrics.enabled": true,

		"server.addr":         ":8080",
		"server.cors_origins": []string{"*"},

		"display.time_format": "24h",
		"display.prayers":     "",
		"display.color":       "auto",
	}
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	cfg, err := decode(newViper())
	if err != nil {
		// The defaults table is static; failing to decode it is a programming error.
		panic(err)
	}
	return *cfg
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// DataDir returns the directory the file store keeps its data in.
// It respects $XDG_DATA_HOME if set, otherwise uses ~/.local/share/.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, appDirName), nil
}

// LoadDotEnv loads environment variables from the given .env files (".env"
// when none are given). Missing files are ignored; variables already set in
// the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from a specific file path.
// If the file does not exist, defaults and environment overrides are used.
// If the file exists but is invalid, it returns an error.
func LoadFrom(path string) (*Config, error) {
	v := newViper()
	found, err := readFile(v, path)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if found {
		cfg.Path = path
	}
	if cfg.Store.Backend == store.BackendFile && cfg.Store.Dir == "" {
		dir, err := DataDir()
		if err != nil {
			return nil, err
		}
		cfg.Store.Dir = dir
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readFile(v *viper.Viper, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return false, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return true, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and the cross-field rules.
func (c *Config) Validate() error {
	sections := []any{&c.Location, &c.Store, &c.Logger, &c.Engine, &c.Server, &c.Display}
	for _, s := range sections {
		v := validate.Struct(s)
		if !v.Validate() {
			return v.Errors
		}
	}

	if c.Location.Source == SourceStatic {
		if _, err := c.Location.Coordinates(); err != nil {
			return err
		}
	}
	if _, err := c.Location.Zone(); err != nil {
		return err
	}
	if c.Display.Prayers != "" {
		if _, err := ParsePrayers(c.Display.Prayers); err != nil {
			return err
		}
	}
	if c.Notify.MQTT.Enabled && c.Notify.MQTT.BrokerURL == "" {
		return errors.New("notify.mqtt.broker_url is required when MQTT is enabled")
	}
	switch c.Store.Backend {
	case store.BackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis backend")
		}
	case store.BackendPostgres:
		if c.Store.PostgresURL == "" {
			return errors.New("store.postgres_url is required for the postgres backend")
		}
	}
	return nil
}

// Coordinates returns the configured static coordinates.
func (l LocationConfig) Coordinates() (prayer.Coordinates, error) {
	c := prayer.NewCoordinates(l.Latitude, l.Longitude)
	if err := c.Validate(); err != nil {
		return prayer.Coordinates{}, err
	}
	return c, nil
}

// Zone returns the configured time zone, time.Local when unset.
func (l LocationConfig) Zone() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// ParsePrayers splits a comma-separated prayer list and checks each name.
func ParsePrayers(s string) ([]string, error) {
	var names []string
	for _, n := range strings.Split(s, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !isValidPrayerName(n) {
			return nil, fmt.Errorf("invalid prayer name %q in prayers list", n)
		}
		names = append(names, n)
	}
	return names, nil
}

func isValidPrayerName(name string) bool {
	for _, n := range prayer.AllPrayerNames {
		if n == name {
			return true
		}
	}
	return false
}

// Keys lists every config key that can be set via `config set`, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns every settable key with its effective value: the file at
// path merged over the defaults, with environment overrides applied.
func Values(path string) (map[string]any, error) {
	v := newViper()
	if _, err := readFile(v, path); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(defaults()))
	for _, k := range Keys() {
		out[k] = v.Get(k)
	}
	return out, nil
}

// Set writes key=value into the config file at path, creating it if needed.
// The resulting config is validated before anything is written.
func Set(path, key, value string) error {
	key = strings.ToLower(key)
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(Keys(), ", "))
	}
	v := newViper()
	if _, err := readFile(v, path); err != nil {
		return err
	}

	parsed, err := parseValue(def, value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	v.Set(key, parsed)

	cfg, err := decode(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", filepath.Dir(path), err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// parseValue converts a CLI string into the type of the key's default.
func parseValue(current any, value string) (any, error) {
	switch current.(type) {
	case bool:
		return strconv.ParseBool(value)
	case int:
		return strconv.Atoi(value)
	case float64:
		return strconv.ParseFloat(value, 64)
	case time.Duration:
		return time.ParseDuration(value)
	case []string:
		var out []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

// Reset deletes the config file at path.
func Reset(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}
