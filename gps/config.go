package gps

import (
	"math"
	"time"
)

// Zone selects how the ZDA local zone offset is derived.
type Zone string

const (
	ZoneUTC      Zone = "utc"      // always +00:00
	ZoneNautical Zone = "nautical" // round(longitude/15) hours at the start position
	ZoneFixed    Zone = "fixed"    // Config.ZoneOffset
)

// Per tick reconciliation steps
const (
	HeadingStep  = 3.0 // degrees
	SpeedStep    = 5.0 // knots
	AltitudeStep = 2.0 // metres
)

const (
	knotsToMetresPerSecond = 0.514444
	antennaOffset          = 2.5 // metres added to altitude in the GGA geoid field
	maxSatellitePRN        = 32
	maxZoneOffset          = 14 * time.Hour
)

// Config holds the initial navigation state and receiver figures
type Config struct {
	Latitude         float64       `yaml:"latitude" json:"latitude"`
	Longitude        float64       `yaml:"longitude" json:"longitude"`
	Altitude         float64       `yaml:"altitude" json:"altitude"` // metres above mean sea level
	Speed            float64       `yaml:"speed" json:"speed"`       // knots
	Heading          float64       `yaml:"heading" json:"heading"`   // degrees true, 0-359.9
	Satellites       int           `yaml:"satellites" json:"satellites"`
	ActiveSatellites int           `yaml:"active_satellites" json:"active_satellites"` // 0 = random 4..12 every tick
	HDOP             float64       `yaml:"hdop" json:"hdop"`
	PDOP             float64       `yaml:"pdop" json:"pdop"`
	VDOP             float64       `yaml:"vdop" json:"vdop"`
	Zone             Zone          `yaml:"zone" json:"zone"`
	ZoneOffset       time.Duration `yaml:"zone_offset" json:"zone_offset"` // used with ZoneFixed
	Seed             int64         `yaml:"seed" json:"seed"`               // satellite RNG seed, 0 = time based
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Latitude:   57.70011131502446, // Gothenburg
		Longitude:  11.988278521104876,
		Altitude:   0,
		Speed:      0,
		Heading:    0,
		Satellites: 15,
		HDOP:       0.92,
		PDOP:       1.56,
		VDOP:       1.25,
		Zone:       ZoneUTC,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if !finite(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if !finite(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if !finite(c.Altitude) {
		return ErrInvalidAltitude
	}
	if !finite(c.Speed) || c.Speed < 0 {
		return ErrInvalidSpeed
	}
	if !finite(c.Heading) || c.Heading < 0 || c.Heading >= 360 {
		return ErrInvalidHeading
	}
	if c.Satellites < 4 || c.Satellites > 24 {
		return ErrInvalidSatelliteCount
	}
	if c.ActiveSatellites != 0 && (c.ActiveSatellites < 4 || c.ActiveSatellites > maxActive(c.Satellites)) {
		return ErrInvalidActiveSatellites
	}
	for _, dop := range []float64{c.HDOP, c.PDOP, c.VDOP} {
		if !finite(dop) || dop <= 0 {
			return ErrInvalidDOP
		}
	}
	switch c.Zone {
	case ZoneUTC, ZoneNautical, "":
	case ZoneFixed:
		if c.ZoneOffset < -maxZoneOffset || c.ZoneOffset > maxZoneOffset {
			return ErrInvalidZoneOffset
		}
	default:
		return ErrInvalidZone
	}
	return nil
}

// zoneOffset resolves the ZDA offset for the configured zone.
func (c *Config) zoneOffset() time.Duration {
	switch c.Zone {
	case ZoneNautical:
		return time.Duration(math.Round(c.Longitude/15)) * time.Hour
	case ZoneFixed:
		return c.ZoneOffset
	default:
		return 0
	}
}

func maxActive(satellites int) int {
	return min(satellites, 12)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
