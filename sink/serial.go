package sink

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialConfig describes a serial line.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	DataBits int           `yaml:"data_bits"`
	Parity   string        `yaml:"parity"`    // N, E, O, M or S
	StopBits float64       `yaml:"stop_bits"` // 1, 1.5 or 2
	Timeout  time.Duration `yaml:"timeout"`   // read timeout, 0 = blocking
}

// DefaultSerialConfig is 9600 8N1.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
	}
}

// Mode converts the configuration to a serial.Mode.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	if c.BaudRate <= 0 {
		return nil, fmt.Errorf("baud rate must be positive, got %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("data bits must be between 5 and 8, got %d", c.DataBits)
	}

	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
	}

	switch strings.ToUpper(c.Parity) {
	case "", "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	case "M":
		mode.Parity = serial.MarkParity
	case "S":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unknown parity %q", c.Parity)
	}

	switch c.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 1.5:
		mode.StopBits = serial.OnePointFiveStopBits
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("stop bits must be 1, 1.5 or 2, got %v", c.StopBits)
	}

	return mode, nil
}

// Serial writes sentences to a serial port.
type Serial struct {
	name string
	port io.WriteCloser
}

// OpenSerial opens the configured port.
func OpenSerial(c SerialConfig) (*Serial, error) {
	mode, err := c.Mode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(c.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Port, err)
	}
	if c.Timeout > 0 {
		if err := port.SetReadTimeout(c.Timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set timeout on %s: %w", c.Port, err)
		}
	}

	return &Serial{name: "serial:" + c.Port, port: port}, nil
}

// Transmit implements Transmitter.
func (s *Serial) Transmit(p []byte) error {
	_, err := s.port.Write(p)
	return err
}

// Close implements Transmitter.
func (s *Serial) Close() error {
	return s.port.Close()
}

// Name implements Transmitter.
func (s *Serial) Name() string {
	return s.name
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
