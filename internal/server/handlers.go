package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/smokyabdulrahman/prayer-engine/internal/engine"
	"github.com/smokyabdulrahman/prayer-engine/internal/geo"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/qibla"
	"github.com/smokyabdulrahman/prayer-engine/internal/settings"
)

const maxRequestBodySize = 1 << 16

// MsgLocationUnavailable is shown when neither a location nor a cached day is available.
const MsgLocationUnavailable = "unable to determine prayer times — check location permissions"

type apiError struct {
	Code    int
	Message string
}

type handlerFunc func(c *gin.Context) (any, *apiError)

func resolve(h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, apiErr := h(c)
		if apiErr != nil {
			c.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func badRequest(format string, args ...any) *apiError {
	return &apiError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// errorFor maps engine errors onto HTTP responses.
func errorFor(err error) *apiError {
	switch {
	case errors.Is(err, prayer.ErrInvalidCoordinates):
		return badRequest("%v", err)
	case errors.Is(err, geo.ErrLocationUnavailable):
		return &apiError{Code: http.StatusServiceUnavailable, Message: MsgLocationUnavailable}
	case errors.Is(err, prayer.ErrNoSunriseSunset):
		return &apiError{Code: http.StatusUnprocessableEntity, Message: err.Error()}
	default:
		return &apiError{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Date          string  `json:"date,omitempty"`
	Degraded      bool    `json:"degraded"`
}

func (s *Server) health(*gin.Context) (any, *apiError) {
	uptime := s.deps.Clock.Now().Sub(s.started)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
	}
	if snap, degraded := s.deps.Tracker.Snapshot(); snap != nil {
		resp.Date = snap.Date
		resp.Degraded = degraded
	}
	return resp, nil
}

// query is a parsed location/date request.
type query struct {
	coords *prayer.Coordinates
	zone   *time.Location
	now    time.Time
	date   time.Time
}

func (q query) today() bool {
	return q.date.Format(prayer.DateLayout) == q.now.Format(prayer.DateLayout)
}

func (s *Server) parseQuery(c *gin.Context) (query, *apiError) {
	q := query{zone: s.cfg.Location}
	if tz := c.Query("tz"); tz != "" {
		zone, err := time.LoadLocation(tz)
		if err != nil {
			return q, badRequest("invalid tz %q", tz)
		}
		q.zone = zone
	}
	q.now = s.deps.Clock.Now().In(q.zone)
	q.date = q.now

	if d := c.Query("date"); d != "" {
		date, err := time.ParseInLocation(prayer.DateLayout, d, q.zone)
		if err != nil {
			return q, badRequest("invalid date %q: expected YYYY-MM-DD", d)
		}
		q.date = date
	}

	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" && lon == "" {
		return q, nil
	}
	if lat == "" || lon == "" {
		return q, badRequest("lat and lon must be given together")
	}
	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return q, badRequest("invalid lat %q", lat)
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return q, badRequest("invalid lon %q", lon)
	}
	coords := prayer.NewCoordinates(latV, lonV)
	if err := coords.Validate(); err != nil {
		return q, badRequest("%v", err)
	}
	q.coords = &coords
	return q, nil
}

// snapshotFor answers q. Explicit coordinates are calculated directly and
// leave the engine alone. Otherwise the engine's location path is used, with
// its cache fallback, and only today's request may refresh the engine.
func (s *Server) snapshotFor(ctx context.Context, q query) (*prayer.Snapshot, bool, error) {
	if q.coords != nil {
		snap, err := prayer.Calculate(*q.coords, q.date, s.deps.Settings.Get())
		return snap, false, err
	}

	cur, degraded := s.deps.Tracker.Snapshot()
	if cur != nil && cur.Date == q.date.Format(prayer.DateLayout) {
		return cur.In(q.zone), degraded, nil
	}
	if cur == nil || q.today() {
		snap, err := s.deps.Tracker.Refresh(ctx, nil, q.now)
		if err != nil {
			return nil, false, err
		}
		if q.today() {
			_, degraded = s.deps.Tracker.Snapshot()
			return snap.In(q.zone), degraded, nil
		}
		cur = snap
	}

	snap, err := prayer.Calculate(cur.Location, q.date, s.deps.Settings.Get())
	return snap, false, err
}

type timesResponse struct {
	*prayer.Snapshot
	Degraded bool `json:"degraded"`
}

func (s *Server) prayerTimes(c *gin.Context) (any, *apiError) {
	q, apiErr := s.parseQuery(c)
	if apiErr != nil {
		return nil, apiErr
	}
	snap, degraded, err := s.snapshotFor(c.Request.Context(), q)
	if err != nil {
		return nil, errorFor(err)
	}
	return timesResponse{Snapshot: snap, Degraded: degraded}, nil
}

type nextResponse struct {
	Date      string                `json:"date"`
	Current   *engine.PrayerInfo    `json:"current"`
	Next      engine.NextPrayerInfo `json:"next"`
	Countdown string                `json:"countdown"`
	Degraded  bool                  `json:"degraded"`
}

func (s *Server) nextPrayer(c *gin.Context) (any, *apiError) {
	q, apiErr := s.parseQuery(c)
	if apiErr != nil {
		return nil, apiErr
	}
	q.date = q.now
	snap, degraded, err := s.snapshotFor(c.Request.Context(), q)
	if err != nil {
		return nil, errorFor(err)
	}

	next, err := engine.NextAt(snap, q.now, func() (time.Time, error) {
		tomorrow, err := prayer.Calculate(snap.Location, q.now.AddDate(0, 0, 1), s.deps.Settings.Get())
		if err != nil {
			return time.Time{}, err
		}
		return tomorrow.Fajr, nil
	})
	if err != nil {
		return nil, errorFor(err)
	}

	return nextResponse{
		Date:      snap.Date,
		Current:   engine.CurrentAt(snap, q.now),
		Next:      next,
		Countdown: prayer.FormatCountdown(next.Remaining),
		Degraded:  degraded,
	}, nil
}

type qiblaResponse struct {
	qibla.Info
	Compass string `json:"compass"`
}

func (s *Server) qiblaBearing(c *gin.Context) (any, *apiError) {
	q, apiErr := s.parseQuery(c)
	if apiErr != nil {
		return nil, apiErr
	}
	coords := q.coords
	if coords == nil {
		snap, _, err := s.snapshotFor(c.Request.Context(), q)
		if err != nil {
			return nil, errorFor(err)
		}
		coords = &snap.Location
	}

	info, err := qibla.For(*coords)
	if err != nil {
		return nil, errorFor(err)
	}
	return qiblaResponse{Info: info, Compass: qibla.Compass(info.BearingDegrees)}, nil
}

func (s *Server) getSettings(*gin.Context) (any, *apiError) {
	return s.deps.Settings.Get(), nil
}

func (s *Server) patchSettings(c *gin.Context) (any, *apiError) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)

	var p settings.Partial
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, badRequest("invalid settings body: %v", err)
	}

	updated, err := s.deps.Settings.Update(c.Request.Context(), p)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return updated, nil
}
