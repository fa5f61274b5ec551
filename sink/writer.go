package sink

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultDataLog is the file name used when none is configured.
const DefaultDataLog = "emulator_data.log"

// DataLogConfig controls rotation of the sentence log.
type DataLogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NewDataLog appends every sentence to a rotating file.
func NewDataLog(c DataLogConfig) *Writer {
	if c.File == "" {
		c.File = DefaultDataLog
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	return NewWriter("log:"+c.File, &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	})
}

// Writer sends sentences to any io.Writer, such as stdout or a file.
type Writer struct {
	name string
	w    io.Writer
}

// NewWriter wraps w. If w is an io.Closer it is closed with the Writer.
func NewWriter(name string, w io.Writer) *Writer {
	return &Writer{name: name, w: w}
}

// Transmit implements Transmitter.
func (w *Writer) Transmit(p []byte) error {
	_, err := w.w.Write(p)
	return err
}

// Close implements Transmitter.
func (w *Writer) Close() error {
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Name implements Transmitter.
func (w *Writer) Name() string {
	return w.name
}
