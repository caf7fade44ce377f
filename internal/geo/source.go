// Package geo acquires the device location from a pluggable Source and
// exposes one-shot and watch-style access with bounded timeouts.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// Fix is a single location reading.
type Fix struct {
	Coordinates prayer.Coordinates
	// Timestamp is when the reading was taken. Zero means the source does not
	// report one and the reading is taken as current.
	Timestamp time.Time
	City      string
	Country   string
	Timezone  string // IANA name, when the source knows it
}

// Source is a platform location capability.
type Source interface {
	Fix(ctx context.Context) (Fix, error)
}

// ipAPIResponse maps the response from ip-api.com.
type ipAPIResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Timezone string  `json:"timezone"`
}

// DefaultIPAPIURL is the ip-api.com endpoint. It is free and needs no API key.
const DefaultIPAPIURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city,country,timezone"

// ipAccuracyMeters is the rough accuracy of city-level IP geolocation.
const ipAccuracyMeters = 5000

// IPSource locates the host from its public IP address.
type IPSource struct {
	URL    string
	Client *http.Client
	Now    func() time.Time
}

// NewIPSource returns an IPSource for url (DefaultIPAPIURL when empty).
func NewIPSource(url string) *IPSource {
	if url == "" {
		url = DefaultIPAPIURL
	}
	return &IPSource{URL: url, Client: &http.Client{}, Now: time.Now}
}

func (s *IPSource) Fix(ctx context.Context) (Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Fix{}, newError(Unavailable, "invalid geolocation URL", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return Fix{}, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return Fix{}, newError(PermissionDenied, fmt.Sprintf("geolocation API returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return Fix{}, newError(Unavailable, fmt.Sprintf("geolocation API returned status %d", resp.StatusCode), nil)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Fix{}, newError(Unavailable, "failed to decode geolocation response", err)
	}

	if result.Status != "success" {
		return Fix{}, newError(Unavailable, "geolocation failed: "+result.Message, nil)
	}

	return Fix{
		Coordinates: prayer.NewCoordinates(result.Lat, result.Lon).WithAccuracy(ipAccuracyMeters),
		Timestamp:   s.Now(),
		City:        result.City,
		Country:     result.Country,
		Timezone:    result.Timezone,
	}, nil
}

// StaticSource always reports the configured coordinates.
type StaticSource struct {
	Coordinates prayer.Coordinates
	Timezone    string
}

func (s StaticSource) Fix(_ context.Context) (Fix, error) {
	return Fix{Coordinates: s.Coordinates, Timezone: s.Timezone}, nil
}

// NoSource stands in for a platform without location capability.
type NoSource struct{}

func (NoSource) Fix(_ context.Context) (Fix, error) {
	return Fix{}, newError(Unavailable, "no location capability on this platform", nil)
}

// DeniedSource stands in for a platform where the user refused location access.
type DeniedSource struct{}

func (DeniedSource) Fix(_ context.Context) (Fix, error) {
	return Fix{}, newError(PermissionDenied, "location permission denied", nil)
}
