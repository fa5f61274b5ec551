package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/gps"
)

type fakeEngine struct {
	mu      sync.Mutex
	targets gps.Targets
	calls   int
	err     error
}

func (f *fakeEngine) Targets() gps.Targets {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets
}

func (f *fakeEngine) SetTargets(heading, speed, altitude float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.targets = gps.Targets{Heading: heading, Speed: speed, Altitude: altitude}
	return nil
}

func runConsole(t *testing.T, input string, engine *fakeEngine) string {
	t.Helper()
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(input), &out, engine, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return at end of input")
	}
	return out.String()
}

func TestConsoleDialog(t *testing.T) {
	engine := &fakeEngine{targets: gps.Targets{Heading: 45, Speed: 10, Altitude: 15.2}}
	out := runConsole(t, "\n180\n12.5\n020\n", engine)

	want := gps.Targets{Heading: 180, Speed: 12.5, Altitude: 20}
	if engine.targets != want {
		t.Errorf("targets = %+v, want %+v", engine.targets, want)
	}
	if engine.calls != 1 {
		t.Errorf("SetTargets called %d times, want 1", engine.calls)
	}

	for _, s := range []string{
		"New course (Active target 45.0)>>> ",
		"New speed (Active target 10.0)>>> ",
		"New altitude (Active target 15.2)>>> ",
		"Course updated: 180.0",
		"Speed updated: 12.5",
		"Altitude updated: 20.0",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}

func TestConsoleRepromptsInvalidInput(t *testing.T) {
	engine := &fakeEngine{}
	out := runConsole(t, "\n360\nabc\n-5\n359\n1000\n12.55\n0\n9.9\n", engine)

	want := gps.Targets{Heading: 359, Speed: 0, Altitude: 9.9}
	if engine.targets != want {
		t.Errorf("targets = %+v, want %+v", engine.targets, want)
	}
	if n := strings.Count(out, "New course"); n != 4 {
		t.Errorf("course prompted %d times, want 4", n)
	}
	if n := strings.Count(out, "New speed"); n != 3 {
		t.Errorf("speed prompted %d times, want 3", n)
	}
}

func TestConsoleIgnoresNonEmptyLines(t *testing.T) {
	engine := &fakeEngine{}
	out := runConsole(t, "hello\nworld\n", engine)
	if engine.calls != 0 {
		t.Errorf("SetTargets called %d times, want 0", engine.calls)
	}
	if strings.Contains(out, "New course") {
		t.Error("dialog started without an empty line")
	}
}

func TestConsoleEOFMidDialog(t *testing.T) {
	engine := &fakeEngine{}
	runConsole(t, "\n90\n", engine)
	if engine.calls != 0 {
		t.Errorf("partial dialog applied %d times", engine.calls)
	}
}

func TestConsoleRejectedTargets(t *testing.T) {
	engine := &fakeEngine{err: errors.New("rejected")}
	out := runConsole(t, "\n10\n10\n10\n\n20\n20\n20\n", engine)
	if engine.calls != 2 {
		t.Errorf("SetTargets called %d times, want 2", engine.calls)
	}
	if !strings.Contains(out, "Targets rejected: rejected") {
		t.Errorf("rejection not reported:\n%s", out)
	}
}

func TestConsoleCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsole(pr, io.Discard, &fakeEngine{}, nil)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() ignored cancellation")
	}
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		input  string
		course bool
		value  bool
	}{
		{"0", true, true},
		{"45", true, true},
		{"045", true, true},
		{"299", true, true},
		{"359", true, true},
		{"360", false, true},
		{"999", false, true},
		{"1000", false, false},
		{"12.5", false, true},
		{"12.55", false, false},
		{"-1", false, false},
		{"", false, false},
		{" 5", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := courseRe.MatchString(tt.input); got != tt.course {
				t.Errorf("course %q = %v, want %v", tt.input, got, tt.course)
			}
			if got := decimalRe.MatchString(tt.input); got != tt.value {
				t.Errorf("decimal %q = %v, want %v", tt.input, got, tt.value)
			}
		})
	}
}
