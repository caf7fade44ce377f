// Package metrics records engine telemetry. Recovered failures (cache I/O,
// settings persistence, location fallbacks) are counted here rather than
// surfaced to callers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the telemetry sink injected into every component.
type Recorder interface {
	IncRefresh(outcome string)
	IncLocationFailure(kind string)
	IncCacheHits()
	IncCacheMisses()
	IncCacheErrors(op string)
	IncSettingsPersistFailures()
	IncNotificationsScheduled(n int)
	IncNotificationsFired(prayer string)
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	ObserveCalculationDuration(duration time.Duration)
}

// Refresh outcomes.
const (
	RefreshOK       = "ok"
	RefreshDegraded = "degraded"
	RefreshFailed   = "failed"
)

// Prometheus implements Recorder with client_golang collectors.
type Prometheus struct {
	refreshes              *prometheus.CounterVec
	locationFailures       *prometheus.CounterVec
	cacheHits              prometheus.Counter
	cacheMisses            prometheus.Counter
	cacheErrors            *prometheus.CounterVec
	settingsPersistFailure prometheus.Counter
	notificationsScheduled prometheus.Counter
	notificationsFired     *prometheus.CounterVec
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	calculationDuration    prometheus.Histogram
}

func (m *Prometheus) IncRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) IncLocationFailure(kind string) {
	m.locationFailures.WithLabelValues(kind).Inc()
}

func (m *Prometheus) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *Prometheus) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *Prometheus) IncCacheErrors(op string) {
	m.cacheErrors.WithLabelValues(op).Inc()
}

func (m *Prometheus) IncSettingsPersistFailures() {
	m.settingsPersistFailure.Inc()
}

func (m *Prometheus) IncNotificationsScheduled(n int) {
	m.notificationsScheduled.Add(float64(n))
}

func (m *Prometheus) IncNotificationsFired(prayer string) {
	m.notificationsFired.WithLabelValues(prayer).Inc()
}

func (m *Prometheus) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *Prometheus) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Prometheus) ObserveCalculationDuration(duration time.Duration) {
	m.calculationDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// New registers the collectors on reg and returns a Prometheus recorder.
// When enabled is false it returns a Recorder that discards everything.
func New(enabled bool, reg prometheus.Registerer) Recorder {
	if !enabled {
		return Noop{}
	}

	f := promauto.With(reg)
	return &Prometheus{
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_refreshes_total",
			Help: "Prayer time refreshes by outcome",
		}, []string{"outcome"}),

		locationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_location_failures_total",
			Help: "Location acquisition failures by kind",
		}, []string{"kind"}),

		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "prayer_cache_hits_total",
			Help: "Total number of prayer time cache hits",
		}),

		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "prayer_cache_misses_total",
			Help: "Total number of prayer time cache misses",
		}),

		cacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_cache_errors_total",
			Help: "Cache I/O and decode errors by operation",
		}, []string{"op"}),

		settingsPersistFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "prayer_settings_persist_failures_total",
			Help: "Settings writes that failed to persist",
		}),

		notificationsScheduled: f.NewCounter(prometheus.CounterOpts{
			Name: "prayer_notifications_scheduled_total",
			Help: "Prayer notifications scheduled",
		}),

		notificationsFired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_notifications_fired_total",
			Help: "Prayer notifications delivered to the sink",
		}, []string{"prayer"}),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prayer_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prayer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		calculationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "prayer_calculation_duration_seconds",
			Help:    "Duration of a prayer time calculation in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		}),
	}
}

// Noop discards all telemetry.
type Noop struct{}

func (Noop) IncRefresh(_ string)                               {}
func (Noop) IncLocationFailure(_ string)                       {}
func (Noop) IncCacheHits()                                     {}
func (Noop) IncCacheMisses()                                   {}
func (Noop) IncCacheErrors(_ string)                           {}
func (Noop) IncSettingsPersistFailures()                       {}
func (Noop) IncNotificationsScheduled(_ int)                   {}
func (Noop) IncNotificationsFired(_ string)                    {}
func (Noop) IncRequestsTotal(_ string, _ int)                  {}
func (Noop) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (Noop) ObserveCalculationDuration(_ time.Duration)        {}
