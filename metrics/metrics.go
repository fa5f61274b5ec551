// Package metrics exposes Prometheus instrumentation for the emulator.
//
// All methods are safe to call on a nil *Metrics, so components can be
// built without a registry in tests and small deployments.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nmea_emulator"

// Metrics bundles the emulator collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Ticks           prometheus.Counter
	SentencesSent   *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
	ActiveSinks     prometheus.Gauge
	MagvarFallbacks prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the emulator metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Number of navigation engine ticks.",
	})); err != nil {
		return nil, err
	}
	if m.SentencesSent, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sentences_sent_total",
		Help:      "NMEA sentences written, labeled by sink.",
	}, []string{"sink"})); err != nil {
		return nil, err
	}
	if m.SinkFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_failures_total",
		Help:      "Transport failures that terminated a sink worker, labeled by sink.",
	}, []string{"sink"})); err != nil {
		return nil, err
	}
	if m.ActiveSinks, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sinks",
		Help:      "Sink workers currently transmitting.",
	})); err != nil {
		return nil, err
	}
	if m.MagvarFallbacks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magvar_fallbacks_total",
		Help:      "Declination lookups that failed and fell back to the last known value.",
	})); err != nil {
		return nil, err
	}
	if m.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"path", "method", "code"})); err != nil {
		return nil, err
	}
	if m.HTTPDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "method"})); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// Tick counts one engine tick.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

// SentenceSent counts one sentence written by sink.
func (m *Metrics) SentenceSent(sink string) {
	if m == nil {
		return
	}
	m.SentencesSent.WithLabelValues(sink).Inc()
}

// SinkFailed counts a worker terminated by a transport error.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// SinkStarted increments the running worker gauge.
func (m *Metrics) SinkStarted() {
	if m == nil {
		return
	}
	m.ActiveSinks.Inc()
}

// SinkStopped decrements the running worker gauge.
func (m *Metrics) SinkStopped() {
	if m == nil {
		return
	}
	m.ActiveSinks.Dec()
}

// MagvarFallback counts a failed declination lookup.
func (m *Metrics) MagvarFallback() {
	if m == nil {
		return
	}
	m.MagvarFallbacks.Inc()
}

// Handler exposes the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware records request count and duration for each request. label
// maps a request to its path label; nil uses the raw URL path.
func (m *Metrics) Middleware(label func(r *http.Request) string) func(http.Handler) http.Handler {
	if label == nil {
		label = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := label(r)
			m.HTTPRequests.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
