// Package di assembles the prayer engine and its collaborators from a
// config.Config. The object graph is declared for google/wire in
// injectors.go; wire_gen.go is the generated constructor.
package di

import (
	"context"
	"io"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/cache"
	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/config"
	"github.com/smokyabdulrahman/prayer-engine/internal/engine"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/logging"
	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/notify"
	"github.com/smokyabdulrahman/prayer-engine/internal/server"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

// ProviderSet is every provider InitializeApp is built from.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideZone,
	ProvideStore,
	ProvideSettings,
	ProvideOverlay,
	ProvideCache,
	ProvideSource,
	ProvideLocator,
	ProvideSink,
	ProvidePermission,
	ProvideEngine,
	ProvideServer,
	NewApp,
)

func ProvideLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	return logging.New(cfg.Logger.Level, cfg.Logger.Format, out)
}

func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) metrics.Recorder {
	return metrics.New(cfg.Metrics.Enabled, reg)
}

func ProvideZone(cfg *config.Config) (*time.Location, error) {
	return cfg.Location.Zone()
}

// ProvideStore opens the configured backend. The cleanup closes it.
func ProvideStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.KV, func(), error) {
	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("backend", cfg.Store.Backend).Msg("store opened")
	return kv, func() {
		if err := kv.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}, nil
}

// ProvideSettings returns a store holding the persisted settings.
func ProvideSettings(ctx context.Context, kv store.KV, log zerolog.Logger, rec metrics.Recorder) *settings.Store {
	s := settings.New(kv, log, rec)
	s.Load(ctx)
	return s
}

func ProvideOverlay(s *settings.Store, overrides settings.Partial) settings.Overlay {
	return settings.Overlay{Store: s, Partial: overrides}
}

func ProvideCache(kv store.KV, log zerolog.Logger, rec metrics.Recorder) *cache.Cache {
	return cache.New(kv, log, rec)
}

// ProvideSource maps location.source to a geo.Source.
func ProvideSource(cfg *config.Config) (geo.Source, error) {
	switch cfg.Location.Source {
	case config.SourceStatic:
		c, err := cfg.Location.Coordinates()
		if err != nil {
			return nil, err
		}
		return geo.StaticSource{Coordinates: c, Timezone: cfg.Location.Timezone}, nil
	case config.SourceNone:
		return geo.NoSource{}, nil
	case config.SourceDenied:
		return geo.DeniedSource{}, nil
	default:
		return geo.NewIPSource(cfg.Location.IPURL), nil
	}
}

func ProvideLocator(cfg *config.Config, src geo.Source, clk clock.Clock, log zerolog.Logger) *geo.Adapter {
	return geo.NewAdapter(src, clk, log,
		geo.WithTimeout(cfg.Location.Timeout),
		geo.WithWatchInterval(cfg.Location.WatchInterval),
	)
}

// ProvideSink fans notifications out to the log and, when enabled, to MQTT.
func ProvideSink(cfg *config.Config, log zerolog.Logger) (notify.Sink, func(), error) {
	var sinks notify.Multi
	cleanup := func() {}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.LogSink{Log: log})
	}
	if cfg.Notify.MQTT.Enabled {
		m, err := notify.NewMQTTSink(cfg.Notify.MQTT.MQTTConfig, log)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, m)
		cleanup = m.Close
	}
	return sinks, cleanup, nil
}

// ProvidePermission grants notifications when engine.notifications is on.
func ProvidePermission(cfg *config.Config) notify.Permission {
	return notify.StaticPermission(cfg.Engine.Notifications)
}

// ProvideEngine builds the engine. The cleanup closes it.
func ProvideEngine(
	cfg *config.Config,
	locator *geo.Adapter,
	active settings.Overlay,
	c *cache.Cache,
	clk clock.Clock,
	sink notify.Sink,
	perm notify.Permission,
	zone *time.Location,
	log zerolog.Logger,
	rec metrics.Recorder,
) (*engine.Engine, func()) {
	e := engine.New(engine.Deps{
		Locator:    locator,
		Settings:   active,
		Cache:      c,
		Clock:      clk,
		Sink:       sink,
		Permission: perm,
		Logger:     log,
		Metrics:    rec,
	}, engine.Options{
		TickInterval:  cfg.Engine.TickInterval,
		Notifications: cfg.Engine.Notifications,
		WatchLocation: cfg.Engine.WatchLocation,
		Location:      zone,
	})
	return e, e.Close
}

func ProvideServer(
	cfg *config.Config,
	e *engine.Engine,
	s *settings.Store,
	clk clock.Clock,
	zone *time.Location,
	log zerolog.Logger,
	rec metrics.Recorder,
	reg *prometheus.Registry,
) *server.Server {
	deps := server.Deps{
		Tracker:  e,
		Settings: s,
		Clock:    clk,
		Logger:   log,
		Metrics:  rec,
	}
	if cfg.Metrics.Enabled {
		deps.Gatherer = reg
	}
	return server.New(server.Config{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Location:    zone,
	}, deps)
}
