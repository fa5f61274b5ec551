package sink

import (
	"fmt"
	"net"
	"time"
)

// Stream sends sentences over an established network connection.
type Stream struct {
	name         string
	conn         net.Conn
	writeTimeout time.Duration
}

// NewStream wraps conn. A positive writeTimeout bounds every Transmit.
func NewStream(name string, conn net.Conn, writeTimeout time.Duration) *Stream {
	return &Stream{name: name, conn: conn, writeTimeout: writeTimeout}
}

// NewTCPStream connects to a listening TCP peer, such as a chart plotter.
func NewTCPStream(addr string, timeout time.Duration) (*Stream, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	return NewStream("tcp:"+addr, conn, timeout), nil
}

// NewUDPStream sends every sentence as one datagram to dest.
func NewUDPStream(dest string) (*Stream, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// local address picked by the kernel
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return NewStream("udp:"+dest, conn, 0), nil
}

// Transmit implements Transmitter.
func (s *Stream) Transmit(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.Write(p)
	return err
}

// Close implements Transmitter.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// Name implements Transmitter.
func (s *Stream) Name() string {
	return s.name
}
