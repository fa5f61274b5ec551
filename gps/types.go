package gps

import (
	"time"

	"github.com/niclasankar/nmea-gps-emulator/magvar"
	"github.com/niclasankar/nmea-gps-emulator/nmea"
)

// TrackPoint represents a point in a GPS track
type TrackPoint struct {
	Lat       float64   `xml:"lat,attr"`
	Lon       float64   `xml:"lon,attr"`
	Elevation float64   `xml:"ele"`
	Time      time.Time `xml:"time"`
}

// Fix is the navigation state reported by one tick
type Fix struct {
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	Altitude         float64          `json:"altitude"`
	Speed            float64          `json:"speed"`   // knots
	Heading          float64          `json:"heading"` // degrees true
	Variation        magvar.Variation `json:"variation"`
	Satellites       []nmea.Satellite `json:"satellites"`
	ActiveSatellites int              `json:"active_satellites"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Targets are the commanded values the engine reconciles towards
type Targets struct {
	Heading  float64 `json:"heading"`
	Speed    float64 `json:"speed"`
	Altitude float64 `json:"altitude"`
}

// TargetUpdate changes the targets whose fields are set and keeps the rest
type TargetUpdate struct {
	Heading  *float64
	Speed    *float64
	Altitude *float64
}

// Status represents the current engine status
type Status struct {
	Fix              Fix       `json:"fix"`
	Targets          Targets   `json:"targets"`
	ChangeInProgress bool      `json:"change_in_progress"`
	Ticks            uint64    `json:"ticks"`
	StartTime        time.Time `json:"start_time"`
	Config           Config    `json:"config"`
}

// NMEAData contains the batch rendered by one tick
type NMEAData struct {
	Sentences []string  `json:"sentences"`
	Fix       Fix       `json:"fix"`
	Timestamp time.Time `json:"timestamp"`
}
