// Package gps implements the navigation engine of the NMEA emulator.
//
// An Engine owns the current and target heading, speed and altitude of a
// simulated receiver. Every call to Advance moves the position along a WGS84
// geodesic, steps each current value towards its target and renders the
// full sentence batch. Sinks that do not advance the engine read the same
// batch through Current.
package gps

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/geo"
	"github.com/niclasankar/nmea-gps-emulator/magvar"
	"github.com/niclasankar/nmea-gps-emulator/metrics"
	"github.com/niclasankar/nmea-gps-emulator/nmea"
)

// Engine is the shared navigation state
type Engine struct {
	mu sync.RWMutex

	config  Config
	now     func() time.Time
	logger  *slog.Logger
	model   magvar.Model
	rng     *rand.Rand
	metrics *metrics.Metrics

	lat, lon      float64
	heading       float64
	speed         float64
	altitude      float64
	target        Targets
	variation     magvar.Variation
	zoneOffset    time.Duration
	timestamp     time.Time
	startTime     time.Time
	changing      bool
	constellation []nmea.Satellite
	active        []nmea.Satellite
	batch         []string
	ticks         uint64
	subscribers   []*subscriber
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now as the source of tick timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger for engine events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMagneticModel replaces the embedded WMM.
func WithMagneticModel(model magvar.Model) Option {
	return func(e *Engine) { e.model = model }
}

// WithRand sets the random source for the satellite set. It takes
// precedence over Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithMetrics enables tick and magnetic variation fallback counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates a navigation engine at the configured start state and renders
// the first batch, so Current is valid before the first Advance.
func New(config Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Zone == "" {
		config.Zone = ZoneUTC
	}

	e := &Engine{
		config:   config,
		now:      time.Now,
		lat:      config.Latitude,
		lon:      config.Longitude,
		heading:  config.Heading,
		speed:    config.Speed,
		altitude: config.Altitude,
		target: Targets{
			Heading:  config.Heading,
			Speed:    config.Speed,
			Altitude: config.Altitude,
		},
		variation:  magvar.FromDeclination(0),
		zoneOffset: config.zoneOffset(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.model == nil {
		e.model = magvar.Default()
	}
	if e.rng == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = rand.New(rand.NewSource(seed))
	}

	e.timestamp = e.now()
	e.startTime = e.timestamp
	e.constellation = e.sampleConstellation()
	e.updateVariation()
	e.active = e.sampleActive()
	e.batch = e.render()

	e.logger.Info("navigation engine ready",
		"latitude", e.lat,
		"longitude", e.lon,
		"altitude", e.altitude,
		"speed", e.speed,
		"heading", e.heading,
		"satellites", len(e.constellation),
		"zone_offset", e.zoneOffset)

	return e, nil
}

// AddCallback adds a callback function that will be called with each tick's
// batch. Each callback runs on its own goroutine and receives batches in tick
// order.
func (e *Engine) AddCallback(callback func(NMEAData)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, newSubscriber(callback))
}

// Close delivers the batches still queued for callbacks and stops their
// goroutines. Ticks after Close reach no callback. Close must not be called
// from a callback.
func (e *Engine) Close() {
	e.mu.Lock()
	subscribers := e.subscribers
	e.subscribers = nil
	e.mu.Unlock()

	for _, s := range subscribers {
		s.close()
	}
}

// Advance runs one tick and returns the freshly rendered batch in the order
// GGA, GSA, GSV..., GLL, RMC, HDT, VTG, ZDA.
func (e *Engine) Advance() []string {
	e.mu.Lock()

	now := e.now()
	elapsed := now.Sub(e.timestamp).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	e.timestamp = now

	moved := false
	if e.speed > 0 && elapsed > 0 {
		e.lat, e.lon = geo.Forward(e.lat, e.lon, e.heading, e.speed*knotsToMetresPerSecond*elapsed)
		moved = true
	}

	previousAltitude := e.altitude
	e.heading = stepHeading(e.heading, e.target.Heading, HeadingStep)
	e.speed = stepToward(e.speed, e.target.Speed, SpeedStep)
	e.altitude = stepToward(e.altitude, e.target.Altitude, AltitudeStep)

	if moved || e.altitude != previousAltitude {
		e.updateVariation()
	}
	if e.changing && !e.changeInProgress() {
		e.changing = false
		e.logger.Info("all updates ready",
			"heading", e.heading,
			"speed", e.speed,
			"altitude", e.altitude)
	}

	e.active = e.sampleActive()
	e.batch = e.render()
	e.ticks++
	e.metrics.Tick()

	batch := append([]string(nil), e.batch...)
	data := NMEAData{
		Sentences: batch,
		Fix:       e.fix(),
		Timestamp: now,
	}
	// Queued under mu so concurrent ticks reach callbacks in tick order.
	for _, s := range e.subscribers {
		s.deliver(data)
	}
	e.mu.Unlock()

	return append([]string(nil), batch...)
}

// Current returns the last rendered batch without changing state.
func (e *Engine) Current() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.batch...)
}

// SetHeadingTarget sets the commanded heading. Values outside [0, 360) are
// wrapped.
func (e *Engine) SetHeadingTarget(heading float64) error {
	if !finite(heading) {
		return ErrInvalidValue
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target.Heading = geo.NormalizeHeading(heading)
	e.targetsChanged()
	return nil
}

// SetSpeedTarget sets the commanded speed in knots.
func (e *Engine) SetSpeedTarget(speed float64) error {
	if err := validSpeed(speed); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target.Speed = speed
	e.targetsChanged()
	return nil
}

// SetAltitudeTarget sets the commanded altitude in metres. Negative values
// are valid (below sea level).
func (e *Engine) SetAltitudeTarget(altitude float64) error {
	if !finite(altitude) {
		return ErrInvalidValue
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target.Altitude = altitude
	e.targetsChanged()
	return nil
}

// SetTargets applies all three targets under one lock, so no tick observes a
// partial change.
func (e *Engine) SetTargets(heading, speed, altitude float64) error {
	if !finite(heading) || !finite(altitude) {
		return ErrInvalidValue
	}
	if err := validSpeed(speed); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = Targets{
		Heading:  geo.NormalizeHeading(heading),
		Speed:    speed,
		Altitude: altitude,
	}
	e.targetsChanged()
	return nil
}

// UpdateTargets applies the fields set in u under one lock and returns the
// resulting targets. Nothing changes when any supplied value is invalid.
func (e *Engine) UpdateTargets(u TargetUpdate) (Targets, error) {
	if u.Heading != nil && !finite(*u.Heading) {
		return Targets{}, ErrInvalidValue
	}
	if u.Altitude != nil && !finite(*u.Altitude) {
		return Targets{}, ErrInvalidValue
	}
	if u.Speed != nil {
		if err := validSpeed(*u.Speed); err != nil {
			return Targets{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if u.Heading != nil {
		e.target.Heading = geo.NormalizeHeading(*u.Heading)
	}
	if u.Speed != nil {
		e.target.Speed = *u.Speed
	}
	if u.Altitude != nil {
		e.target.Altitude = *u.Altitude
	}
	e.targetsChanged()
	return e.target, nil
}

func validSpeed(speed float64) error {
	if !finite(speed) {
		return ErrInvalidValue
	}
	if speed < 0 {
		return ErrInvalidSpeed
	}
	return nil
}

// targetsChanged must be called with mu held.
func (e *Engine) targetsChanged() {
	if !e.changeInProgress() {
		return
	}
	if !e.changing {
		e.logger.Info("change started",
			"heading", e.target.Heading,
			"speed", e.target.Speed,
			"altitude", e.target.Altitude)
	}
	e.changing = true
}

func (e *Engine) changeInProgress() bool {
	return e.heading != e.target.Heading ||
		e.speed != e.target.Speed ||
		e.altitude != e.target.Altitude
}

// updateVariation refreshes the declination, keeping the last value when
// the model rejects the input.
func (e *Engine) updateVariation() {
	d, err := e.model.Declination(e.lat, e.lon, e.altitude, e.timestamp)
	if err != nil {
		e.logger.Warn("magnetic variation lookup failed, keeping last value",
			"error", err,
			"variation", e.variation.Declination())
		e.metrics.MagvarFallback()
		return
	}
	e.variation = magvar.FromDeclination(d)
}

// stepHeading turns current towards target along the shorter arc.
func stepHeading(current, target, step float64) float64 {
	delta := math.Mod(target-current+540, 360) - 180
	if delta == -180 {
		// Opposite headings turn right
		delta = 180
	}
	if math.Abs(delta) <= step {
		return target
	}
	if delta > 0 {
		return geo.NormalizeHeading(current + step)
	}
	return geo.NormalizeHeading(current - step)
}

func stepToward(current, target, step float64) float64 {
	switch {
	case math.Abs(target-current) <= step:
		return target
	case target > current:
		return current + step
	default:
		return current - step
	}
}

// Heading returns the current heading in degrees true
func (e *Engine) Heading() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.heading
}

// Speed returns the current speed in knots
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// Altitude returns the current altitude in metres
func (e *Engine) Altitude() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.altitude
}

// TargetHeading returns the commanded heading
func (e *Engine) TargetHeading() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target.Heading
}

// TargetSpeed returns the commanded speed
func (e *Engine) TargetSpeed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target.Speed
}

// TargetAltitude returns the commanded altitude
func (e *Engine) TargetAltitude() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target.Altitude
}

// Targets returns all three commanded values
func (e *Engine) Targets() Targets {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target
}

// Position returns the current position
func (e *Engine) Position() nmea.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return nmea.Position{Latitude: e.lat, Longitude: e.lon}
}

// MagneticVariation returns the variation used by the last render
func (e *Engine) MagneticVariation() magvar.Variation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.variation
}

// ChangeInProgress reports whether any current value differs from its target
func (e *Engine) ChangeInProgress() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.changeInProgress()
}

// Status returns the current engine status
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Status{
		Fix:              e.fix(),
		Targets:          e.target,
		ChangeInProgress: e.changeInProgress(),
		Ticks:            e.ticks,
		StartTime:        e.startTime,
		Config:           e.config,
	}
}

// fix must be called with mu held.
func (e *Engine) fix() Fix {
	return Fix{
		Latitude:         e.lat,
		Longitude:        e.lon,
		Altitude:         e.altitude,
		Speed:            e.speed,
		Heading:          e.heading,
		Variation:        e.variation,
		Satellites:       append([]nmea.Satellite(nil), e.constellation...),
		ActiveSatellites: len(e.active),
		Timestamp:        e.timestamp,
	}
}
