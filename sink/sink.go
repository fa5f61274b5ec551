// Package sink moves rendered NMEA batches from the navigation engine to
// output transports.
//
// Every transport is a Transmitter driven by its own Worker. Workers that
// share an engine join one Group: the first active worker advances the
// engine each cycle, the others send the batch it rendered, so every output
// carries the same stream.
package sink

import (
	"io"
	"log/slog"
)

// Transmitter is a single output transport.
type Transmitter interface {
	Transmit(p []byte) error
	Close() error
	Name() string
}

// Source is the engine as seen by a Group.
type Source interface {
	Advance() []string
	Current() []string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
