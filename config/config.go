// Package config loads the emulator YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/niclasankar/nmea-gps-emulator/gps"
	"github.com/niclasankar/nmea-gps-emulator/logging"
	"github.com/niclasankar/nmea-gps-emulator/sink"
)

// Config is the complete emulator configuration.
type Config struct {
	Emulator gps.Config     `yaml:"emulator"`
	Outputs  Outputs        `yaml:"outputs"`
	Logging  logging.Config `yaml:"logging"`
	POI      POIConfig      `yaml:"poi"`
	Route    RouteConfig    `yaml:"route"`
	Track    TrackConfig    `yaml:"track"`
}

// Outputs lists the sinks and shared worker pacing.
type Outputs struct {
	Interval  time.Duration   `yaml:"interval"`
	Gap       time.Duration   `yaml:"gap"`
	Filter    []string        `yaml:"filter"`
	Serial    SerialOutput    `yaml:"serial"`
	TCPServer TCPServerOutput `yaml:"tcp_server"`
	Stream    StreamOutput    `yaml:"stream"`
	Log       LogOutput       `yaml:"log"`
	Stdout    StdoutOutput    `yaml:"stdout"`
	Web       WebOutput       `yaml:"web"`
}

type SerialOutput struct {
	Enable            bool `yaml:"enable"`
	sink.SerialConfig `yaml:",inline"`
}

type TCPServerOutput struct {
	Enable     bool   `yaml:"enable"`
	Listen     string `yaml:"listen"`
	MaxClients int    `yaml:"max_clients"`
}

type StreamOutput struct {
	Enable   bool          `yaml:"enable"`
	Protocol string        `yaml:"protocol"` // tcp or udp
	Address  string        `yaml:"address"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogOutput struct {
	Enable             bool `yaml:"enable"`
	sink.DataLogConfig `yaml:",inline"`
}

type StdoutOutput struct {
	Enable bool `yaml:"enable"`
}

type WebOutput struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

// POIConfig selects a start position from a points file.
type POIConfig struct {
	File string `yaml:"file"`
	UID  int    `yaml:"uid"`
}

// RouteConfig enables GPX route following.
type RouteConfig struct {
	File             string `yaml:"file"`
	gps.RouteOptions `yaml:",inline"`
}

// TrackConfig enables GPX track recording.
type TrackConfig struct {
	File string `yaml:"file"`
}

// WorkerConfig returns the pacing shared by every sink.
func (o Outputs) WorkerConfig() sink.WorkerConfig {
	return sink.WorkerConfig{
		Interval: o.Interval,
		Gap:      o.Gap,
		Filter:   o.Filter,
	}
}

// Default returns the built-in configuration: stdout output only, starting
// at the default position.
func Default() Config {
	return Config{
		Emulator: gps.DefaultConfig(),
		Outputs: Outputs{
			Interval: sink.DefaultInterval,
			Gap:      sink.DefaultGap,
			Serial:   SerialOutput{SerialConfig: sink.DefaultSerialConfig()},
			TCPServer: TCPServerOutput{
				Listen:     "0.0.0.0:10110",
				MaxClients: sink.DefaultMaxClients,
			},
			Stream: StreamOutput{
				Protocol: "tcp",
				Timeout:  5 * time.Second,
			},
			Log:    LogOutput{DataLogConfig: sink.DataLogConfig{File: sink.DefaultDataLog}},
			Stdout: StdoutOutput{Enable: true},
			Web:    WebOutput{Listen: ":8080"},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Emulator.Validate(); err != nil {
		return fmt.Errorf("emulator: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	o := c.Outputs
	if o.Interval < 0 {
		return fmt.Errorf("outputs.interval must not be negative")
	}
	if o.Serial.Enable {
		if o.Serial.Port == "" {
			return fmt.Errorf("outputs.serial.port is required when outputs.serial.enable is true")
		}
		if _, err := o.Serial.Mode(); err != nil {
			return fmt.Errorf("outputs.serial: %w", err)
		}
	}
	if o.TCPServer.Enable && o.TCPServer.Listen == "" {
		return fmt.Errorf("outputs.tcp_server.listen is required when outputs.tcp_server.enable is true")
	}
	if o.Stream.Enable {
		switch strings.ToLower(o.Stream.Protocol) {
		case "tcp", "udp":
		default:
			return fmt.Errorf("outputs.stream.protocol must be tcp or udp, got %q", o.Stream.Protocol)
		}
		if o.Stream.Address == "" {
			return fmt.Errorf("outputs.stream.address is required when outputs.stream.enable is true")
		}
	}
	if o.Web.Enable && o.Web.Listen == "" {
		return fmt.Errorf("outputs.web.listen is required when outputs.web.enable is true")
	}
	// A recorded track is an output of its own
	if !o.Serial.Enable && !o.TCPServer.Enable && !o.Stream.Enable &&
		!o.Log.Enable && !o.Stdout.Enable && !o.Web.Enable && c.Track.File == "" {
		return errors.New("no outputs enabled and no track file set")
	}

	if c.POI.File != "" && c.POI.UID == 0 {
		return fmt.Errorf("poi.uid is required when poi.file is set")
	}
	if c.Route.ArrivalRadius < 0 {
		return fmt.Errorf("route.arrival_radius must not be negative")
	}
	if c.Route.Speed < 0 {
		return fmt.Errorf("route.speed must not be negative")
	}
	return nil
}
