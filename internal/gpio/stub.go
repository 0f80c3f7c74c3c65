//go:build !linux

package gpio

import "errors"

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string, rows, cols []int, edges bool) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetLine is not implemented on non-Linux platforms.
func (r *RealLines) SetLine(id, level int) error {
	return errors.New("gpio: not supported")
}

// GetLine is not implemented on non-Linux platforms.
func (r *RealLines) GetLine(id int) (int, error) {
	return Low, errors.New("gpio: not supported")
}

// SetEdgeHandler is a no-op on non-Linux platforms.
func (r *RealLines) SetEdgeHandler(fn func(id int)) {}

// EnableNotification is a no-op on non-Linux platforms.
func (r *RealLines) EnableNotification(id int) {}

// DisableNotification is a no-op on non-Linux platforms.
func (r *RealLines) DisableNotification(id int) {}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error {
	return nil
}
