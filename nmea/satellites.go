package nmea

import (
	"fmt"
	"strings"
)

const (
	// SatellitesPerGSV is the number of satellites carried by one GSV sentence.
	SatellitesPerGSV = 4
	// MaxGSASatellites is the number of satellite ID slots in a GSA sentence.
	MaxGSASatellites = 12
)

// Satellite represents a GPS satellite in view
type Satellite struct {
	ID        int `json:"id"`
	Elevation int `json:"elevation"` // degrees above horizon, 0-90
	Azimuth   int `json:"azimuth"`   // degrees from true north, 0-359
	SNR       int `json:"snr"`       // signal-to-noise ratio, 0-99 dB
}

// GSA is the GPS DOP and Active Satellites sentence.
type GSA struct {
	SelectionMode string // A = automatic, M = manual
	FixMode       int    // 1 = no fix, 2 = 2D, 3 = 3D
	SatelliteIDs  []int
	PDOP          float64
	HDOP          float64
	VDOP          float64
}

func (s GSA) String() string {
	// 12 ID slots, unused ones left blank
	ids := make([]string, MaxGSASatellites)
	for i, id := range s.SatelliteIDs {
		if i == MaxGSASatellites {
			break
		}
		ids[i] = fmt.Sprintf("%02d", id)
	}

	return Encode(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s",
		TypeGSA, s.SelectionMode, s.FixMode,
		strings.Join(ids, ","),
		formatFloat(s.PDOP), formatFloat(s.HDOP), formatFloat(s.VDOP)))
}

// GSV is one sentence of a Satellites in View group.
type GSV struct {
	Total      int // sentences in the group
	Number     int // 1-based index of this sentence
	InView     int // satellites in view across the whole group
	Satellites []Satellite
}

func (s GSV) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s,%d,%d,%d", TypeGSV, s.Total, s.Number, s.InView)
	for _, sat := range s.Satellites {
		fmt.Fprintf(&b, ",%02d,%02d,%03d,%02d", sat.ID, sat.Elevation, sat.Azimuth, sat.SNR)
	}
	return Encode(b.String())
}

// SatellitesInView splits the satellites into a GSV group of at most four
// satellites per sentence. The last sentence carries the remainder and is
// not padded.
func SatellitesInView(sats []Satellite) []GSV {
	total := (len(sats) + SatellitesPerGSV - 1) / SatellitesPerGSV
	group := make([]GSV, 0, total)

	for i := 0; i < total; i++ {
		start := i * SatellitesPerGSV
		end := start + SatellitesPerGSV
		if end > len(sats) {
			end = len(sats)
		}
		group = append(group, GSV{
			Total:      total,
			Number:     i + 1,
			InView:     len(sats),
			Satellites: sats[start:end],
		})
	}

	return group
}
