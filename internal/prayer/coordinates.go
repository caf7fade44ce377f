package prayer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates is returned for a latitude outside [-90, 90] or a
// longitude outside [-180, 180]. Values are never clamped.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a single location fix. A new fix replaces an old one; the
// value is never mutated after capture.
type Coordinates struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
}

// NewCoordinates returns coordinates without an accuracy estimate.
func NewCoordinates(lat, lon float64) Coordinates {
	return Coordinates{Latitude: lat, Longitude: lon}
}

// WithAccuracy returns a copy carrying the given accuracy in meters.
func (c Coordinates) WithAccuracy(meters float64) Coordinates {
	c.AccuracyMeters = &meters
	return c
}

// Validate reports whether the coordinates are within range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinates, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

// String formats the coordinates as "lat, lon" with four decimals.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}
