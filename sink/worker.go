package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/metrics"
)

// Worker pacing defaults
const (
	DefaultInterval = 1100 * time.Millisecond
	DefaultGap      = 50 * time.Millisecond
)

// WorkerConfig controls the pacing of one worker.
type WorkerConfig struct {
	Interval time.Duration // cycle length, 0 = DefaultInterval
	Gap      time.Duration // pause between sentences, 0 = DefaultGap, negative = none
	Filter   []string      // sentence identifiers to send (e.g. GPGGA), empty = all
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Gap == 0 {
		c.Gap = DefaultGap
	}
	return c
}

// Worker sends batches from its group to one transmitter at a steady pace.
type Worker struct {
	tx      Transmitter
	group   *Group
	config  WorkerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWorker binds a transmitter to the group. The worker joins the group
// when Run starts. logger and m may be nil.
func (g *Group) NewWorker(tx Transmitter, config WorkerConfig, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = discardLogger()
	}
	return &Worker{
		tx:      tx,
		group:   g,
		config:  config.withDefaults(),
		logger:  logger.With("sink", tx.Name()),
		metrics: m,
	}
}

// Run transmits until ctx is cancelled, returning nil, or until the
// transport fails, returning the error. Either way the transmitter is closed
// and the worker leaves its group; other workers are not affected.
func (w *Worker) Run(ctx context.Context) error {
	w.group.join(w)
	w.metrics.SinkStarted()
	w.logger.Info("sink started", "interval", w.config.Interval)

	defer func() {
		w.group.leave(w)
		w.metrics.SinkStopped()
		if err := w.tx.Close(); err != nil {
			w.logger.Debug("close failed", "error", err)
		}
	}()

	for {
		start := time.Now()

		if err := w.send(ctx, w.group.Batch(w)); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("sink stopped")
				return nil
			}
			w.metrics.SinkFailed(w.tx.Name())
			w.logger.Error("sink failed", "error", err)
			return fmt.Errorf("%s: %w", w.tx.Name(), err)
		}

		wait := w.config.Interval - time.Since(start)
		if !sleep(ctx, wait) {
			w.logger.Info("sink stopped")
			return nil
		}
	}
}

func (w *Worker) send(ctx context.Context, batch []string) error {
	sent := 0
	for _, sentence := range batch {
		if !w.wanted(sentence) {
			continue
		}
		if sent > 0 && w.config.Gap > 0 && !sleep(ctx, w.config.Gap) {
			return ctx.Err()
		}
		if err := w.tx.Transmit([]byte(sentence)); err != nil {
			return err
		}
		w.metrics.SentenceSent(w.tx.Name())
		sent++
	}
	return nil
}

func (w *Worker) wanted(sentence string) bool {
	if len(w.config.Filter) == 0 {
		return true
	}
	body := strings.TrimPrefix(sentence, "$")
	for _, id := range w.config.Filter {
		if strings.HasPrefix(body, id+",") {
			return true
		}
	}
	return false
}

// sleep waits for d or until ctx is done, reporting false in the latter case.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
