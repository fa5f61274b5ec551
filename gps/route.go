package gps

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/geo"
)

// DefaultArrivalRadius is used when RouteOptions.ArrivalRadius is unset.
const DefaultArrivalRadius = 50.0

// RouteOptions configures a RouteFollower
type RouteOptions struct {
	ArrivalRadius   float64 `yaml:"arrival_radius"`   // metres
	Speed           float64 `yaml:"speed"`            // knots, 0 keeps the engine's target speed
	FollowElevation bool    `yaml:"follow_elevation"` // steer altitude towards waypoint elevation
	Loop            bool    `yaml:"loop"`             // restart at the first waypoint after the last
}

// RouteFollower steers an engine through a list of waypoints by setting the
// heading target to the bearing of the active waypoint.
type RouteFollower struct {
	mu        sync.Mutex
	engine    *Engine
	points    []TrackPoint
	opts      RouteOptions
	logger    *slog.Logger
	index     int
	laps      int
	completed bool
	lastFix   time.Time
}

// NewRouteFollower validates the route. logger may be nil.
func NewRouteFollower(engine *Engine, points []TrackPoint, opts RouteOptions, logger *slog.Logger) (*RouteFollower, error) {
	if len(points) == 0 {
		return nil, ErrNoWaypoints
	}
	if err := validSpeed(opts.Speed); err != nil {
		return nil, err
	}
	if opts.ArrivalRadius <= 0 {
		opts.ArrivalRadius = DefaultArrivalRadius
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RouteFollower{
		engine: engine,
		points: points,
		opts:   opts,
		logger: logger,
	}, nil
}

// Attach steers towards the first waypoint and re-evaluates the route on
// every tick of the engine.
func (r *RouteFollower) Attach() {
	if r.opts.Speed > 0 {
		r.setSpeed(r.opts.Speed)
	}
	r.Update(r.engine.Status().Fix)
	r.engine.AddCallback(func(data NMEAData) {
		r.Update(data.Fix)
	})
}

// Update advances past every waypoint within the arrival radius of fix and
// steers towards the next one. When the last waypoint of a non looping
// route is reached the speed target is set to zero.
func (r *RouteFollower) Update(fix Fix) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed {
		return
	}

	radius := math.Max(r.opts.ArrivalRadius, r.turnDiameter(fix))

	for range r.points {
		wp := r.points[r.index]
		distance, bearing := geo.Inverse(fix.Latitude, fix.Longitude, wp.Lat, wp.Lon)
		if distance > radius {
			r.steer(bearing, wp)
			return
		}

		r.logger.Info("waypoint reached", "index", r.index, "lat", wp.Lat, "lon", wp.Lon)
		r.index++
		if r.index < len(r.points) {
			continue
		}
		if !r.opts.Loop {
			r.completed = true
			r.setSpeed(0)
			r.logger.Info("route completed", "waypoints", len(r.points))
			return
		}
		r.index = 0
		r.laps++
	}
}

// turnDiameter is the diameter of the circle the engine flies at its
// current speed, so a waypoint inside the turn still counts as reached.
func (r *RouteFollower) turnDiameter(fix Fix) float64 {
	dt := 1.0
	if !r.lastFix.IsZero() && fix.Timestamp.After(r.lastFix) {
		dt = fix.Timestamp.Sub(r.lastFix).Seconds()
	}
	r.lastFix = fix.Timestamp

	perTick := fix.Speed * knotsToMetresPerSecond * dt
	return perTick * (360 / HeadingStep) / math.Pi
}

func (r *RouteFollower) steer(bearing float64, wp TrackPoint) {
	if err := r.engine.SetHeadingTarget(bearing); err != nil {
		r.logger.Warn("route heading rejected", "index", r.index, "bearing", bearing, "error", err)
	}
	if r.opts.FollowElevation {
		if err := r.engine.SetAltitudeTarget(wp.Elevation); err != nil {
			r.logger.Warn("route elevation rejected", "index", r.index, "elevation", wp.Elevation, "error", err)
		}
	}
}

func (r *RouteFollower) setSpeed(speed float64) {
	if err := r.engine.SetSpeedTarget(speed); err != nil {
		r.logger.Warn("route speed rejected", "speed", speed, "error", err)
	}
}

// Index returns the active waypoint.
func (r *RouteFollower) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Laps returns how many times a looping route has been completed.
func (r *RouteFollower) Laps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.laps
}

// Completed reports whether a non looping route has reached its last waypoint.
func (r *RouteFollower) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}
