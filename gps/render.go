package gps

import (
	"github.com/niclasankar/nmea-gps-emulator/geo"
	"github.com/niclasankar/nmea-gps-emulator/nmea"
)

// render builds the sentence batch from the current state. mu must be held.
func (e *Engine) render() []string {
	pos := nmea.Position{Latitude: e.lat, Longitude: e.lon}

	ids := make([]int, len(e.active))
	for i, sat := range e.active {
		ids[i] = sat.ID
	}

	gsv := nmea.SatellitesInView(e.constellation)
	batch := make([]string, 0, 7+len(gsv))

	batch = append(batch, nmea.GGA{
		Time:          e.timestamp,
		Position:      pos,
		FixQuality:    1,
		Satellites:    len(e.active),
		HDOP:          e.config.HDOP,
		Altitude:      e.altitude,
		AntennaHeight: e.altitude + antennaOffset,
	}.String())

	batch = append(batch, nmea.GSA{
		SelectionMode: "A",
		FixMode:       3,
		SatelliteIDs:  ids,
		PDOP:          e.config.PDOP,
		HDOP:          e.config.HDOP,
		VDOP:          e.config.VDOP,
	}.String())

	for _, s := range gsv {
		batch = append(batch, s.String())
	}

	batch = append(batch,
		nmea.GLL{Time: e.timestamp, Position: pos, Status: "A", Mode: "A"}.String(),
		nmea.RMC{
			Time:               e.timestamp,
			Status:             "A",
			Position:           pos,
			Speed:              e.speed,
			Course:             e.heading,
			Variation:          e.variation.Degrees,
			VariationDirection: e.variation.Direction,
			Mode:               "A",
		}.String(),
		nmea.HDT{Heading: e.heading}.String(),
		nmea.VTG{
			TrueTrack:     e.heading,
			MagneticTrack: geo.NormalizeHeading(e.heading - e.variation.Declination()),
			Speed:         e.speed,
		}.String(),
		nmea.ZDA{Time: e.timestamp, ZoneOffset: e.zoneOffset}.String(),
	)

	return batch
}
