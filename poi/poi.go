// Package poi loads named start positions from a JSON file.
package poi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/niclasankar/nmea-gps-emulator/gps"
)

// DefaultFile is the conventional location of the points file.
const DefaultFile = "pois/poi.json"

var (
	ErrNotFound = errors.New("poi not found")
	ErrEmpty    = errors.New("poi file contains no points")
)

// Point is one entry of the points file.
type Point struct {
	UID     int     `json:"uid"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	LatDir  string  `json:"lat_d"`
	Lon     float64 `json:"lon"`
	LonDir  string  `json:"lon_d"`
	Alt     float64 `json:"alt"`
	Heading float64 `json:"head"`
}

// Latitude returns the signed latitude. An unsigned value with an S
// hemisphere is taken as south.
func (p Point) Latitude() float64 {
	if strings.EqualFold(p.LatDir, "S") && p.Lat > 0 {
		return -p.Lat
	}
	return p.Lat
}

// Longitude returns the signed longitude. An unsigned value with a W
// hemisphere is taken as west.
func (p Point) Longitude() float64 {
	if strings.EqualFold(p.LonDir, "W") && p.Lon > 0 {
		return -p.Lon
	}
	return p.Lon
}

// Apply copies the position, altitude and heading into config.
func (p Point) Apply(config *gps.Config) {
	config.Latitude = p.Latitude()
	config.Longitude = p.Longitude()
	config.Altitude = p.Alt
	config.Heading = p.Heading
}

func (p Point) String() string {
	return fmt.Sprintf("%d - %s, (%.3f°%s, %f°%s)", p.UID, p.Name, p.Lon, p.LonDir, p.Lat, p.LatDir)
}

// Load reads a points file.
func Load(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open poi file: %w", err)
	}
	defer f.Close()

	points, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// Parse decodes a JSON array of points and validates every position.
func Parse(r io.Reader) ([]Point, error) {
	var points []Point
	if err := json.NewDecoder(r).Decode(&points); err != nil {
		return nil, fmt.Errorf("failed to decode poi file: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[int]bool, len(points))
	for _, p := range points {
		if seen[p.UID] {
			return nil, fmt.Errorf("duplicate poi uid %d", p.UID)
		}
		seen[p.UID] = true

		config := gps.DefaultConfig()
		p.Apply(&config)
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("poi %d (%s): %w", p.UID, p.Name, err)
		}
	}
	return points, nil
}

// Find returns the point with the given uid.
func Find(points []Point, uid int) (Point, error) {
	for _, p := range points {
		if p.UID == uid {
			return p, nil
		}
	}
	return Point{}, fmt.Errorf("uid %d: %w", uid, ErrNotFound)
}
