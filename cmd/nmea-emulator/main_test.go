package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/niclasankar/nmea-gps-emulator/gps"
	"github.com/niclasankar/nmea-gps-emulator/nmea"
)

func runWithTimeout(t *testing.T, args []string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	}()

	select {
	case err := <-done:
		return stdout.String(), err
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return")
		return "", nil
	}
}

// Test version variables
func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

func TestVersionFlag(t *testing.T) {
	out, err := runWithTimeout(t, []string{"-version"})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if out != Commit+"\n" {
		t.Errorf("output = %q, want %q", out, Commit+"\n")
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, opts, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if opts.console || opts.duration != 0 {
		t.Errorf("opts = %+v", opts)
	}
	if cfg.Emulator != gps.DefaultConfig() {
		t.Errorf("emulator config = %+v, want defaults", cfg.Emulator)
	}
	if !cfg.Outputs.Stdout.Enable {
		t.Error("stdout not enabled by default")
	}
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emulator.yaml")
	data := "emulator:\n  speed: 3\n  heading: 45\noutputs:\n  stdout:\n    enable: false\n  web:\n    enable: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := parseFlags([]string{
		"-config", path,
		"-speed", "7",
		"-filter", "gpgga, gprmc",
		"-stream", "127.0.0.1:10110",
		"-stream-proto", "udp",
		"-serial", "/dev/ttyUSB0",
		"-baud", "4800",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	if cfg.Emulator.Speed != 7 {
		t.Errorf("Speed = %v, want flag value 7", cfg.Emulator.Speed)
	}
	if cfg.Emulator.Heading != 45 {
		t.Errorf("Heading = %v, want file value 45", cfg.Emulator.Heading)
	}
	if cfg.Outputs.Stdout.Enable {
		t.Error("stdout enabled although the file disables it")
	}
	if !cfg.Outputs.Web.Enable {
		t.Error("web output from file lost")
	}
	if strings.Join(cfg.Outputs.Filter, ",") != "GPGGA,GPRMC" {
		t.Errorf("Filter = %v", cfg.Outputs.Filter)
	}
	if !cfg.Outputs.Stream.Enable || cfg.Outputs.Stream.Protocol != "udp" {
		t.Errorf("stream = %+v", cfg.Outputs.Stream)
	}
	if !cfg.Outputs.Serial.Enable || cfg.Outputs.Serial.BaudRate != 4800 {
		t.Errorf("serial = %+v", cfg.Outputs.Serial)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"invalid latitude", []string{"-lat", "95"}, gps.ErrInvalidLatitude},
		{"invalid heading", []string{"-heading", "360"}, gps.ErrInvalidHeading},
		{"too many satellites", []string{"-satellites", "30"}, gps.ErrInvalidSatelliteCount},
		{"negative duration", []string{"-duration", "-1s"}, errUsage},
		{"extra argument", []string{"now"}, errUsage},
		{"unknown flag", []string{"-bogus"}, nil},
		{"missing config", []string{"-config", "does-not-exist.yaml"}, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFlags(tt.args, &bytes.Buffer{})
			if err == nil {
				t.Fatal("parseFlags() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunStdout(t *testing.T) {
	out, err := runWithTimeout(t, []string{
		"-duration", "300ms",
		"-interval", "100ms",
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := strings.SplitAfter(out, "\r\n")
	if len(lines) < 2 {
		t.Fatalf("too little output: %q", out)
	}
	if !strings.HasPrefix(lines[0], "$GPGGA,") {
		t.Errorf("first sentence = %q", lines[0])
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		body := strings.TrimPrefix(strings.TrimSuffix(line, "\r\n"), "$")
		i := strings.LastIndex(body, "*")
		if i < 0 {
			// cut short by the deadline
			continue
		}
		if got := nmea.Checksum(body[:i]); got != body[i+1:] {
			t.Errorf("checksum of %q = %s, want %s", line, got, body[i+1:])
		}
	}
}

func TestRunFromPOI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poi.json")
	data := `[{"uid": 2, "name": "Rio", "lat": -22.9068, "lat_d": "S", "lon": -43.1729, "lon_d": "W", "alt": 5, "head": 180}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runWithTimeout(t, []string{
		"-poi", path, "-poi-uid", "2",
		"-duration", "200ms",
		"-filter", "GPGGA",
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.HasPrefix(out, "$GPGGA,") || !strings.Contains(out, ",2254.40800,S,04310.37400,W,") {
		t.Errorf("GGA does not start at the POI: %q", out)
	}
}

func TestRunUnknownPOI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poi.json")
	if err := os.WriteFile(path, []byte(`[{"uid": 1, "lat": 1, "lon": 1}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runWithTimeout(t, []string{"-poi", path, "-poi-uid", "9"}); err == nil {
		t.Error("run() succeeded with an unknown uid")
	}
}

func TestRunTrack(t *testing.T) {
	track := filepath.Join(t.TempDir(), "track.gpx")
	_, err := runWithTimeout(t, []string{
		"-stdout=false",
		"-speed", "20",
		"-track", track,
		"-filter", "GPGGA",
		"-duration", "500ms",
		"-interval", "50ms",
		"-log-level", "error",
	})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	points, err := gps.ReadGPXFile(track)
	if err != nil {
		t.Fatalf("ReadGPXFile() error = %v", err)
	}
	if len(points) == 0 {
		t.Error("track has no points")
	}
}
