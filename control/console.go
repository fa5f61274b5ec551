// Package control reads new navigation targets from an interactive
// terminal.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/niclasankar/nmea-gps-emulator/gps"
)

var (
	courseRe  = regexp.MustCompile(`^(3[0-5]\d|[0-2]\d{2}|\d{1,2})$`)
	decimalRe = regexp.MustCompile(`^\d{1,3}(\.\d)?$`)
)

// Targeter is the part of the engine the console drives.
type Targeter interface {
	Targets() gps.Targets
	SetTargets(heading, speed, altitude float64) error
}

// Console runs the change dialog: an empty line asks for a new course,
// speed and altitude, which are applied together once all three are valid.
type Console struct {
	in     io.Reader
	out    io.Writer
	engine Targeter
	logger *slog.Logger
}

// NewConsole creates a console reading from in and prompting on out.
func NewConsole(in io.Reader, out io.Writer, engine Targeter, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Console{in: in, out: out, engine: engine, logger: logger}
}

// Run processes input until ctx is cancelled or the input ends. Both
// return nil.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("console input failed", "error", err)
		}
	}()

	fmt.Fprintln(c.out, "Press Enter to change course, speed and altitude")

	next := func() (string, bool) {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return line, ok
		}
	}

	for {
		line, ok := next()
		if !ok {
			return nil
		}
		if line != "" {
			continue
		}

		if !c.dialog(next) {
			return nil
		}
	}
}

// dialog reports false when input ended before all three values were read.
func (c *Console) dialog(next func() (string, bool)) bool {
	active := c.engine.Targets()

	heading, ok := c.ask(next, fmt.Sprintf("New course (Active target %.1f)>>> ", active.Heading), courseRe)
	if !ok {
		return false
	}
	fmt.Fprintf(c.out, "\nCourse updated: %.1f\n\n", heading)

	speed, ok := c.ask(next, fmt.Sprintf("New speed (Active target %.1f)>>> ", active.Speed), decimalRe)
	if !ok {
		return false
	}
	fmt.Fprintf(c.out, "\nSpeed updated: %.1f\n\n", speed)

	altitude, ok := c.ask(next, fmt.Sprintf("New altitude (Active target %.1f)>>> ", active.Altitude), decimalRe)
	if !ok {
		return false
	}
	fmt.Fprintf(c.out, "\nAltitude updated: %.1f\n\n", altitude)

	if err := c.engine.SetTargets(heading, speed, altitude); err != nil {
		c.logger.Error("failed to apply targets", "error", err)
		fmt.Fprintf(c.out, "Targets rejected: %v\n", err)
		return true
	}
	c.logger.Info("targets updated from console",
		"heading", heading,
		"speed", speed,
		"altitude", altitude)
	return true
}

// ask repeats prompt until a line matches re.
func (c *Console) ask(next func() (string, bool), prompt string, re *regexp.Regexp) (float64, bool) {
	for {
		fmt.Fprint(c.out, prompt)
		line, ok := next()
		if !ok {
			return 0, false
		}
		if !re.MatchString(line) {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		return v, true
	}
}
