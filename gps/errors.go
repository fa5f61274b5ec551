package gps

import "errors"

// Common errors returned by the navigation engine
var (
	ErrInvalidLatitude         = errors.New("latitude must be between -90 and 90 degrees")
	ErrInvalidLongitude        = errors.New("longitude must be between -180 and 180 degrees")
	ErrInvalidAltitude         = errors.New("altitude must be a finite number")
	ErrInvalidSpeed            = errors.New("speed must be non-negative")
	ErrInvalidHeading          = errors.New("heading must be between 0.0 and 359.9 degrees")
	ErrInvalidSatelliteCount   = errors.New("number of satellites must be between 4 and 24")
	ErrInvalidActiveSatellites = errors.New("active satellites must be 0 or between 4 and min(12, satellites)")
	ErrInvalidDOP              = errors.New("dilution of precision must be positive")
	ErrInvalidZone             = errors.New("zone must be utc, nautical or fixed")
	ErrInvalidZoneOffset       = errors.New("zone offset must be within 14 hours of UTC")
	ErrInvalidValue            = errors.New("target must be a finite number")
	ErrNoWaypoints             = errors.New("route has no waypoints")
)
