// Package magvar computes magnetic declination from a World Magnetic Model
// style spherical harmonic field model.
package magvar

import (
	"errors"
	"math"
	"time"
)

// Errors returned by a Model
var (
	ErrInvalidCoordinate = errors.New("coordinate or altitude outside the model domain")
	ErrOutOfRange        = errors.New("date outside the model validity period")
)

// Model returns the declination in degrees at a point and instant.
// Positive values are east of true north, negative values west.
type Model interface {
	Declination(lat, lon, altitude float64, t time.Time) (float64, error)
}

// Variation is a declination expressed the way NMEA sentences carry it.
type Variation struct {
	Degrees   float64 `json:"degrees"`   // unsigned magnitude
	Direction string  `json:"direction"` // E or W
}

// FromDeclination converts a signed declination to a Variation.
func FromDeclination(declination float64) Variation {
	if declination < 0 {
		return Variation{Degrees: -declination, Direction: "W"}
	}
	return Variation{Degrees: declination, Direction: "E"}
}

// Declination returns the signed value, west negative.
func (v Variation) Declination() float64 {
	if v.Direction == "W" {
		return -v.Degrees
	}
	return v.Degrees
}

// DecimalYear returns t as a fractional year, e.g. 2024.5 for noon on 1 July 2024.
func DecimalYear(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Seconds()/end.Sub(start).Seconds()
}

func validCoordinate(lat, lon, altitude float64) bool {
	for _, v := range []float64{lat, lon, altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 360 &&
		altitude >= minAltitude && altitude <= maxAltitude
}
