// Package sink forwards the keypad character stream to a serial port, so a
// host on the other end of the cable sees keys as typed characters.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/tarm/serial"
)

// DefaultBaud is the line speed used when none is given.
const DefaultBaud = 9600

// Serial writes keys to a serial device.
type Serial struct {
	mu      sync.Mutex
	port    io.WriteCloser
	written uint64
	closed  bool
}

// OpenSerial opens the named device (e.g. /dev/ttyAMA0) at baud.
func OpenSerial(name string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return NewSerial(port), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser) *Serial {
	return &Serial{port: port}
}

// Write sends keys unchanged. A short write is reported as an error.
func (s *Serial) Write(keys []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := s.port.Write(keys)
	s.written += uint64(n)
	if err == nil && n < len(keys) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Written returns the number of bytes sent so far.
func (s *Serial) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close closes the port. Later writes fail.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}
