// Package gpio provides keypad line access with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation simulates a key matrix for testing without hardware.
package gpio

import "errors"

// Line levels.
const (
	Low  = 0
	High = 1
)

// ErrLineUnavailable is wrapped by errors returned when a line cannot be
// claimed or configured.
var ErrLineUnavailable = errors.New("gpio: line unavailable")

// Lines drives and samples keypad lines by BCM offset.
type Lines interface {
	// SetLine drives an output line to level (Low or High).
	SetLine(id, level int) error

	// GetLine returns the level of an input line.
	GetLine(id int) (int, error)

	// Close releases GPIO resources.
	Close() error
}

// Notifier delivers rising-edge notifications for input lines.
//
// The edge handler runs in a context that must not block: it may only
// disable notifications and schedule deferred work.
type Notifier interface {
	// SetEdgeHandler registers fn to be called with the line offset on
	// every rising edge of an enabled input line.
	SetEdgeHandler(fn func(id int))

	// EnableNotification lets edges on line id reach the handler.
	EnableNotification(id int)

	// DisableNotification discards edges on line id until re-enabled.
	DisableNotification(id int)
}

// Default pin assignments (BCM numbering).
var (
	DefaultRows = []int{5, 6, 13, 19} // header pins 29, 31, 33, 35
	DefaultCols = []int{12, 16, 20}   // header pins 32, 36, 38
)
