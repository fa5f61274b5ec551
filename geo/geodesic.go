// Package geo solves the direct and inverse geodesic problems on the WGS84
// ellipsoid.
package geo

import (
	"math"

	"github.com/tidwall/geodesic"
)

// Forward returns the point reached by travelling distance metres from
// (lat, lon) with the given initial true heading. Longitude is normalized to
// [-180, 180].
func Forward(lat, lon, heading, distance float64) (float64, float64) {
	if distance == 0 {
		return lat, lon
	}

	var lat2, lon2 float64
	geodesic.WGS84.Direct(lat, lon, heading, distance, &lat2, &lon2, nil)
	return lat2, NormalizeLongitude(lon2)
}

// Inverse returns the distance in metres and the initial bearing in degrees
// [0, 360) from the first point to the second.
func Inverse(lat1, lon1, lat2, lon2 float64) (float64, float64) {
	var distance, bearing float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &distance, &bearing, nil)
	return distance, NormalizeHeading(bearing)
}

// NormalizeHeading wraps degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -1e-15 + 360 rounds to 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// NormalizeLongitude wraps degrees into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
