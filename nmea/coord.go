package nmea

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedCoordinate is returned when a (d)ddmm.mmmmm string cannot be parsed.
var ErrMalformedCoordinate = errors.New("malformed NMEA coordinate")

// minutePrecision is the number of decimals written for the minutes part.
const minutePrecision = 1e5

// degreesMinutes splits an absolute decimal degree value into whole degrees
// and minutes rounded to the output precision. A value that rounds to 60
// minutes is carried into the next degree.
func degreesMinutes(v float64) (int, float64) {
	v = math.Abs(v)
	deg := math.Floor(v)
	minutes := math.Round((v-deg)*60*minutePrecision) / minutePrecision
	if minutes >= 60 {
		deg++
		minutes = 0
	}
	return int(deg), minutes
}

// FormatLatitude converts decimal degrees to the NMEA DDMM.MMMMM form.
func FormatLatitude(v float64) string {
	deg, minutes := degreesMinutes(v)
	return fmt.Sprintf("%02d%08.5f", deg, minutes)
}

// FormatLongitude converts decimal degrees to the NMEA DDDMM.MMMMM form.
func FormatLongitude(v float64) string {
	deg, minutes := degreesMinutes(v)
	return fmt.Sprintf("%03d%08.5f", deg, minutes)
}

// LatitudeHemisphere returns N for northern (or equatorial) latitudes, S otherwise.
func LatitudeHemisphere(v float64) string {
	if v < 0 {
		return "S"
	}
	return "N"
}

// LongitudeHemisphere returns E for eastern (or Greenwich) longitudes, W otherwise.
func LongitudeHemisphere(v float64) string {
	if v < 0 {
		return "W"
	}
	return "E"
}

// ParseDegreesMinutes converts an NMEA (d)ddmm.mmmmm string back to unsigned
// decimal degrees.
func ParseDegreesMinutes(s string) (float64, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 4 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, s)
	}
	deg, err := strconv.ParseUint(s[:dot-2], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, s)
	}
	minutes, err := strconv.ParseFloat(s[dot-2:], 64)
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, s)
	}
	return float64(deg) + minutes/60, nil
}
