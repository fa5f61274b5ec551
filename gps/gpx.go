package gps

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// flushEvery is the number of recorded points between file rewrites.
const flushEvery = 10

// GPX represents the root GPX document structure
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   Track    `xml:"trk"`
	Routes  []Route  `xml:"rte"`
}

// Track represents a GPX track
type Track struct {
	Name         string       `xml:"name"`
	TrackSegment TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a segment of a GPX track
type TrackSegment struct {
	TrackPoints []TrackPoint `xml:"trkpt"`
}

// Route represents a GPX route
type Route struct {
	Name        string       `xml:"name"`
	RoutePoints []TrackPoint `xml:"rtept"`
}

// TrackRecorder writes the emulated track to a GPX 1.1 file. The whole
// document is rewritten every flushEvery points and on Close, so the file is
// always well formed.
type TrackRecorder struct {
	mu       sync.Mutex
	filename string
	gpx      *GPX
	file     *os.File
	logger   *slog.Logger
}

// NewTrackRecorder creates the GPX file and an empty track. logger may be nil.
func NewTrackRecorder(filename string, logger *slog.Logger) (*TrackRecorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &TrackRecorder{
		filename: filename,
		file:     file,
		logger:   logger,
		gpx: &GPX{
			Version: "1.1",
			Creator: "nmea-gps-emulator",
			Xmlns:   "http://www.topografix.com/GPX/1/1",
			Track: Track{
				Name: "NMEA Emulator Track",
			},
		},
	}, nil
}

// Attach records every tick of the engine.
func (r *TrackRecorder) Attach(e *Engine) {
	e.AddCallback(r.Record)
}

// Record adds the fix of one tick, flushing periodically.
func (r *TrackRecorder) Record(data NMEAData) {
	if r.Add(data.Fix.Latitude, data.Fix.Longitude, data.Fix.Altitude, data.Timestamp)%flushEvery != 0 {
		return
	}
	if err := r.WriteToFile(); err != nil {
		r.logger.Warn("failed to write GPX track", "file", r.filename, "error", err)
	}
}

// Add appends a track point and returns the new point count.
func (r *TrackRecorder) Add(lat, lon, elevation float64, timestamp time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seg := &r.gpx.Track.TrackSegment
	seg.TrackPoints = append(seg.TrackPoints, TrackPoint{
		Lat:       lat,
		Lon:       lon,
		Elevation: elevation,
		Time:      timestamp.UTC(),
	})
	return len(seg.TrackPoints)
}

// WriteToFile rewrites the file with the current track.
func (r *TrackRecorder) WriteToFile() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write()
}

func (r *TrackRecorder) write() error {
	if r.file == nil {
		return os.ErrClosed
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to beginning of file: %w", err)
	}
	if err := r.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := r.file.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(r.file)
	encoder.Indent("", "  ")
	if err := encoder.Encode(r.gpx); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}

	return r.file.Sync()
}

// Close writes the final track and closes the file
func (r *TrackRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.write()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	return err
}

// Count returns the number of track points recorded
func (r *TrackRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gpx.Track.TrackSegment.TrackPoints)
}

// ReadGPXFile reads and parses a GPX file, returning the track points
func ReadGPXFile(filename string) ([]TrackPoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file %s: %w", filename, err)
	}
	defer file.Close()

	points, err := ParseGPX(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return points, nil
}

// ParseGPX returns the first track segment of a GPX document, or the first
// route when it has no track.
func ParseGPX(r io.Reader) ([]TrackPoint, error) {
	var gpx GPX
	if err := xml.NewDecoder(r).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	points := gpx.Track.TrackSegment.TrackPoints
	if len(points) == 0 && len(gpx.Routes) > 0 {
		points = gpx.Routes[0].RoutePoints
	}
	if len(points) == 0 {
		return nil, ErrNoWaypoints
	}
	return points, nil
}
