package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds how long a watcher blocks in WaitForEdge before it
// re-checks for Close.
const edgePoll = 100 * time.Millisecond

// edgeSettle is how long before WaitForEdge returns an edge is taken to
// have happened. periph reports no event time, so an edge seen within
// edgeSettle of EnableNotification is treated as left over from while the
// line was masked.
const edgeSettle = 5 * time.Millisecond

// PeriphLines drives keypad lines through periph.io, for boards where the
// GPIO character device is not available.
type PeriphLines struct {
	rows map[int]pgpio.PinIO
	cols map[int]pgpio.PinIO

	gate    *edgeGate
	epoch   time.Time
	handler atomic.Pointer[func(id int)]

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPeriphLines initializes periph.io and configures the row pins as
// outputs driven Low and the column pins as pulled-down inputs. With edges
// set, a watcher goroutine per column delivers rising edges to the handler.
func NewPeriphLines(rows, cols []int, edges bool) (*PeriphLines, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: periph host init: %w", ErrLineUnavailable, err)
	}

	p := &PeriphLines{
		rows:  make(map[int]pgpio.PinIO, len(rows)),
		cols:  make(map[int]pgpio.PinIO, len(cols)),
		gate:  newEdgeGate(cols, true),
		epoch: time.Now(),
		stop:  make(chan struct{}),
	}

	for _, off := range rows {
		pin, err := resolvePin(off)
		if err != nil {
			p.Close()
			return nil, err
		}
		if err := pin.Out(pgpio.Low); err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: set row pin %d to output: %w", ErrLineUnavailable, off, err)
		}
		p.rows[off] = pin
	}

	edge := pgpio.NoEdge
	if edges {
		edge = pgpio.RisingEdge
	}
	for _, off := range cols {
		pin, err := resolvePin(off)
		if err != nil {
			p.Close()
			return nil, err
		}
		if err := pin.In(pgpio.PullDown, edge); err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: set column pin %d to input: %w", ErrLineUnavailable, off, err)
		}
		p.cols[off] = pin
	}

	if edges {
		for off, pin := range p.cols {
			p.wg.Add(1)
			go p.watch(off, pin)
		}
	}
	return p, nil
}

func resolvePin(off int) (pgpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", off)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: pin %d (%s) not found", ErrLineUnavailable, off, name)
	}
	return pin, nil
}

func (p *PeriphLines) watch(off int, pin pgpio.PinIO) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if !pin.WaitForEdge(edgePoll) {
			continue
		}
		if !p.gate.admit(off, p.now()-edgeSettle) {
			continue
		}
		if h := p.handler.Load(); h != nil {
			(*h)(off)
		}
	}
}

// SetLine drives a row pin.
func (p *PeriphLines) SetLine(id, level int) error {
	pin, ok := p.rows[id]
	if !ok {
		return fmt.Errorf("set pin %d: not a row line", id)
	}
	l := pgpio.Low
	if level != Low {
		l = pgpio.High
	}
	if err := pin.Out(l); err != nil {
		return fmt.Errorf("set pin %d: %w", id, err)
	}
	return nil
}

// GetLine reads a column pin.
func (p *PeriphLines) GetLine(id int) (int, error) {
	pin, ok := p.cols[id]
	if !ok {
		return Low, fmt.Errorf("read pin %d: not a column line", id)
	}
	if pin.Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

// SetEdgeHandler registers the rising-edge callback.
func (p *PeriphLines) SetEdgeHandler(fn func(id int)) {
	p.handler.Store(&fn)
}

// EnableNotification lets edges on line id reach the handler.
func (p *PeriphLines) EnableNotification(id int) {
	p.gate.enable(id, p.now())
}

// DisableNotification discards edges on line id.
func (p *PeriphLines) DisableNotification(id int) {
	p.gate.disable(id)
}

func (p *PeriphLines) now() time.Duration {
	return time.Since(p.epoch)
}

// Close stops the edge watchers, drives the rows Low and returns every pin
// to a pulled-down input.
func (p *PeriphLines) Close() error {
	select {
	case <-p.stop:
		return nil
	default:
		close(p.stop)
	}
	for _, pin := range p.cols {
		pin.Halt()
	}
	p.wg.Wait()

	var errs []error
	for off, pin := range p.rows {
		if err := pin.Out(pgpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("drive row pin %d low: %w", off, err))
		}
		if err := pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure row pin %d: %w", off, err))
		}
	}
	for off, pin := range p.cols {
		if err := pin.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure column pin %d: %w", off, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
