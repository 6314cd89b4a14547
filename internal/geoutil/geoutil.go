// Package geoutil holds the service-area boundary check and small spatial
// conversions for the Georgia deployment.
package geoutil

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// Georgia bounding box, WGS84, edges inclusive. This is the hard service
// boundary for the deployment, independent of provider quality.
const (
	georgiaLatMin = 30.3558
	georgiaLatMax = 35.0013
	georgiaLngMin = -85.6052
	georgiaLngMax = -80.8400
)

// georgiaBounds is the box in (x=lng, y=lat) order.
var georgiaBounds = geom.NewBounds(geom.XY).Set(georgiaLngMin, georgiaLatMin, georgiaLngMax, georgiaLatMax)

// OutOfAreaError reports coordinates outside the supported service area.
// It is a data violation, never retried and never a trigger for provider
// fallback.
type OutOfAreaError struct {
	Lat float64
	Lng float64
}

func (e *OutOfAreaError) Error() string {
	return fmt.Sprintf("coordinates (%f, %f) are outside the Georgia service area", e.Lat, e.Lng)
}

// ValidateGeorgiaCoordinates fails with *OutOfAreaError unless the point
// falls within the Georgia bounding box, edges inclusive.
func ValidateGeorgiaCoordinates(lat, lng float64) error {
	if !georgiaBounds.OverlapsPoint(geom.XY, geom.Coord{lng, lat}) {
		return &OutOfAreaError{Lat: lat, Lng: lng}
	}
	return nil
}

// metersPerDegree is the approximate ground length of one degree of
// longitude at the equator.
const metersPerDegree = 111320.0

// MetersToDegrees converts a linear distance in meters to an approximate
// longitude-degree offset at the given latitude, usable for spatial
// buffering. Non-positive distances return 0. A degree of longitude covers
// less ground at higher latitudes, so for fixed meters the returned delta
// strictly increases with latitude.
func MetersToDegrees(meters, latitude float64) float64 {
	if meters <= 0 {
		return 0.0
	}
	cos := math.Cos(latitude * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	return meters / (metersPerDegree * cos)
}
