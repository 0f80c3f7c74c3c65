//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// Consumer is the label the keypad lines are requested under.
const Consumer = "keypad"

// RealLines drives keypad lines through the Linux GPIO character device.
type RealLines struct {
	chip *gpiocdev.Chip
	rows map[int]*gpiocdev.Line
	cols map[int]*gpiocdev.Line

	gate    *edgeGate
	handler atomic.Pointer[func(id int)]
}

// NewRealLines requests the row lines as outputs driven Low and the column
// lines as pulled-down inputs. With edges set, rising edges on the columns
// are delivered to the handler registered with SetEdgeHandler. Edge events
// are stamped with CLOCK_MONOTONIC, which needs GPIO uAPI v2.
//
// If any line cannot be claimed, the lines already claimed are released and
// the returned error wraps ErrLineUnavailable.
func NewRealLines(chipName string, rows, cols []int, edges bool) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("%w: open gpio chip %s: %w", ErrLineUnavailable, chipName, err)
	}

	r := &RealLines{
		chip: chip,
		rows: make(map[int]*gpiocdev.Line, len(rows)),
		cols: make(map[int]*gpiocdev.Line, len(cols)),
		gate: newEdgeGate(cols, true),
	}

	for _, off := range rows {
		l, err := chip.RequestLine(off, gpiocdev.AsOutput(Low))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: request row pin %d: %w", ErrLineUnavailable, off, err)
		}
		r.rows[off] = l
	}

	for _, off := range cols {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
		if edges {
			opts = append(opts,
				gpiocdev.WithRisingEdge,
				gpiocdev.WithMonotonicEventClock,
				gpiocdev.WithEventHandler(r.onEvent))
		}
		l, err := chip.RequestLine(off, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: request column pin %d: %w", ErrLineUnavailable, off, err)
		}
		r.cols[off] = l
	}

	return r, nil
}

// onEvent runs on the gpiocdev watcher goroutine, possibly well after the
// edge. The event timestamp decides whether the edge predates the last
// EnableNotification.
func (r *RealLines) onEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	if !r.gate.admit(evt.Offset, evt.Timestamp) {
		return
	}
	if h := r.handler.Load(); h != nil {
		(*h)(evt.Offset)
	}
}

// monotonicNow reads the clock gpiocdev stamps events with.
func monotonicNow() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// SetLine drives a row line.
func (r *RealLines) SetLine(id, level int) error {
	l, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("set pin %d: not a row line", id)
	}
	if err := l.SetValue(level); err != nil {
		return fmt.Errorf("set pin %d: %w", id, err)
	}
	return nil
}

// GetLine reads a column line.
func (r *RealLines) GetLine(id int) (int, error) {
	l, ok := r.cols[id]
	if !ok {
		return Low, fmt.Errorf("read pin %d: not a column line", id)
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", id, err)
	}
	return v, nil
}

// SetEdgeHandler registers the rising-edge callback.
func (r *RealLines) SetEdgeHandler(fn func(id int)) {
	r.handler.Store(&fn)
}

// EnableNotification lets edges on line id reach the handler.
func (r *RealLines) EnableNotification(id int) {
	r.gate.enable(id, monotonicNow())
}

// DisableNotification discards edges on line id.
func (r *RealLines) DisableNotification(id int) {
	r.gate.disable(id)
}

// Close releases GPIO resources.
// Row lines are driven Low and every line is reconfigured to input with
// pull-down (matching Pi boot defaults) before closing.
func (r *RealLines) Close() error {
	var errs []error

	for off, l := range r.rows {
		if err := l.SetValue(Low); err != nil {
			errs = append(errs, fmt.Errorf("drive row pin %d low: %w", off, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure row pin %d: %w", off, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close row pin %d: %w", off, err))
		}
	}
	for off, l := range r.cols {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close column pin %d: %w", off, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
