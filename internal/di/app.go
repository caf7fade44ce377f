package di

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/cache"
	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/config"
	"github.com/smokyabdulrahman/prayer-engine/internal/engine"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/server"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

// App is the assembled object graph shared by the binaries.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Clock    clock.Clock
	Zone     *time.Location
	Store    store.KV
	Settings *settings.Store
	// Active is Settings with the command line overrides applied.
	Active  settings.Overlay
	Cache   *cache.Cache
	Locator *geo.Adapter
	Engine  *engine.Engine
	Server  *server.Server
}

func NewApp(
	cfg *config.Config,
	log zerolog.Logger,
	clk clock.Clock,
	zone *time.Location,
	kv store.KV,
	s *settings.Store,
	active settings.Overlay,
	c *cache.Cache,
	locator *geo.Adapter,
	e *engine.Engine,
	srv *server.Server,
) *App {
	return &App{
		Config:   cfg,
		Logger:   log,
		Clock:    clk,
		Zone:     zone,
		Store:    kv,
		Settings: s,
		Active:   active,
		Cache:    c,
		Locator:  locator,
		Engine:   e,
		Server:   srv,
	}
}

// Now is the clock's time in the configured zone.
func (a *App) Now() time.Time {
	return a.Clock.Now().In(a.Zone)
}
