package nmea

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sentence identifiers emitted by the emulator.
const (
	TypeGGA = "GPGGA"
	TypeGSA = "GPGSA"
	TypeGSV = "GPGSV"
	TypeGLL = "GPGLL"
	TypeRMC = "GPRMC"
	TypeHDT = "GPHDT"
	TypeVTG = "GPVTG"
	TypeZDA = "GPZDA"
)

// KnotsToKmh converts knots to kilometres per hour.
const KnotsToKmh = 1.852

// Sentence is anything that renders to a framed NMEA line.
type Sentence interface {
	String() string
}

// Position is a decimal degree coordinate. Hemisphere letters and the NMEA
// degrees-minutes text are derived from it on every render.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Position) fields() string {
	return FormatLatitude(p.Latitude) + "," + LatitudeHemisphere(p.Latitude) + "," +
		FormatLongitude(p.Longitude) + "," + LongitudeHemisphere(p.Longitude)
}

// utcTime returns hhmmss for t in UTC.
func utcTime(t time.Time) string {
	return t.UTC().Format("150405")
}

// formatFloat writes v with the fewest digits that represent it exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GGA is the Global Positioning System Fix Data sentence.
type GGA struct {
	Time          time.Time
	Position      Position
	FixQuality    int
	Satellites    int
	HDOP          float64
	Altitude      float64 // metres above mean sea level
	AntennaHeight float64 // metres, reported in the geoid separation field
	DGPSAge       string
	DGPSStation   string
}

func (s GGA) String() string {
	return Encode(fmt.Sprintf("%s,%s.00,%s,%d,%02d,%s,%.1f,M,%.1f,M,%s,%s",
		TypeGGA, utcTime(s.Time), s.Position.fields(),
		s.FixQuality, s.Satellites, formatFloat(s.HDOP),
		s.Altitude, s.AntennaHeight,
		s.DGPSAge, s.DGPSStation))
}

// GLL is the Geographic Position (latitude/longitude, time and status) sentence.
type GLL struct {
	Time     time.Time
	Position Position
	Status   string // A = data valid, V = data not valid
	Mode     string // A = autonomous
}

func (s GLL) String() string {
	return Encode(fmt.Sprintf("%s,%s,%s.000,%s,%s",
		TypeGLL, s.Position.fields(), utcTime(s.Time), s.Status, s.Mode))
}

// RMC is the Recommended Minimum Specific GNSS Data sentence.
type RMC struct {
	Time               time.Time
	Status             string
	Position           Position
	Speed              float64 // knots
	Course             float64 // degrees true
	Variation          float64 // degrees, unsigned
	VariationDirection string  // E or W
	Mode               string
}

func (s RMC) String() string {
	return Encode(fmt.Sprintf("%s,%s.000,%s,%s,%.3f,%.1f,%s,%06.2f,%s,%s",
		TypeRMC, utcTime(s.Time), s.Status, s.Position.fields(),
		s.Speed, s.Course, s.Time.UTC().Format("020106"),
		math.Abs(s.Variation), s.VariationDirection, s.Mode))
}

// HDT is the True Heading sentence.
type HDT struct {
	Heading float64
}

func (s HDT) String() string {
	return Encode(fmt.Sprintf("%s,%.1f,T", TypeHDT, s.Heading))
}

// VTG is the Track Made Good and Ground Speed sentence.
type VTG struct {
	TrueTrack     float64
	MagneticTrack float64
	Speed         float64 // knots
}

func (s VTG) String() string {
	return Encode(fmt.Sprintf("%s,%.1f,T,%.1f,M,%.1f,N,%.1f,K",
		TypeVTG, s.TrueTrack, s.MagneticTrack, s.Speed, s.Speed*KnotsToKmh))
}

// ZDA is the Time and Date sentence. ZoneOffset is the local zone offset
// from UTC, written as signed hours and unsigned minutes.
type ZDA struct {
	Time       time.Time
	ZoneOffset time.Duration
}

func (s ZDA) String() string {
	utc := s.Time.UTC()
	total := int(s.ZoneOffset / time.Minute)
	hours := total / 60
	minutes := total % 60
	sign := "+"
	if total < 0 {
		sign = "-"
		hours, minutes = -hours, -minutes
	}
	return Encode(fmt.Sprintf("%s,%s.000,%s,%s%02d,%02d",
		TypeZDA, utcTime(utc), utc.Format("02,01,2006"), sign, hours, minutes))
}
