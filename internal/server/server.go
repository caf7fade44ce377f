// Package server exposes the engine over an HTTP JSON API for the Mini-App
// front-end.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/clock"
	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
)

const shutdownTimeout = 5 * time.Second

// Tracker is the part of the engine the API reads from.
type Tracker interface {
	Refresh(ctx context.Context, loc *prayer.Coordinates, date time.Time) (*prayer.Snapshot, error)
	Snapshot() (*prayer.Snapshot, bool)
}

// SettingsStore reads and updates calculation settings.
type SettingsStore interface {
	Get() prayer.Settings
	Update(ctx context.Context, p settings.Partial) (prayer.Settings, error)
}

type Config struct {
	Addr        string
	CORSOrigins []string
	// Location is the default zone for dates and times (time.Local when nil).
	Location *time.Location
}

type Deps struct {
	Tracker  Tracker
	Settings SettingsStore
	Clock    clock.Clock
	Logger   zerolog.Logger
	Metrics  metrics.Recorder
	// Gatherer serves /metrics; the endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg     Config
	deps    Deps
	router  *gin.Engine
	started time.Time
}

func New(cfg Config, deps Deps) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	s := &Server{cfg: cfg, deps: deps, started: deps.Clock.Now()}
	s.router = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	// Debug mode prints route tables to stdout, which CLI output shares.
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.deps.Logger), metricsMiddleware(s.deps.Metrics))
	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	r.GET("/health", resolve(s.health))

	api := r.Group("/api")
	api.GET("/prayer-times", resolve(s.prayerTimes))
	api.GET("/prayer-times/next", resolve(s.nextPrayer))
	api.GET("/qibla", resolve(s.qiblaBearing))
	api.GET("/settings", resolve(s.getSettings))
	api.PATCH("/settings", resolve(s.patchSettings))

	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "PATCH", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.deps.Logger.Info().Msg("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
