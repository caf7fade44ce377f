// Package qibla computes the direction of the Kaaba from a point on Earth.
package qibla

import (
	"math"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
)

// Kaaba is the location of the Kaaba in Mecca.
var Kaaba = prayer.NewCoordinates(21.4225, 39.8262)

// Info is a derived Qibla result for one location.
type Info struct {
	BearingDegrees float64            `json:"bearingDegrees"`
	Location       prayer.Coordinates `json:"location"`
}

// Bearing returns the great-circle initial bearing from c to the Kaaba in
// degrees clockwise from true north, in [0, 360).
//
// At the Kaaba itself and at its antipode the bearing is undefined; the value
// returned there is whatever atan2 yields and carries no meaning.
func Bearing(c prayer.Coordinates) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	phi1 := c.Latitude * math.Pi / 180
	phi2 := Kaaba.Latitude * math.Pi / 180
	dLambda := (Kaaba.Longitude - c.Longitude) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg, nil
}

// For returns the Qibla Info for c.
func For(c prayer.Coordinates) (Info, error) {
	b, err := Bearing(c)
	if err != nil {
		return Info{}, err
	}
	return Info{BearingDegrees: b, Location: c}, nil
}

// Compass names the eight-point compass direction of a bearing, e.g. "NE".
func Compass(bearing float64) string {
	points := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	i := int(math.Mod(bearing+22.5, 360) / 45)
	return points[i%8]
}
