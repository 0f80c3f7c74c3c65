package keypad

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/keypad-driver/internal/gpio"
)

// Mode selects how sweeps are triggered.
type Mode string

const (
	ModePoll      Mode = "poll"
	ModeInterrupt Mode = "irq"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePoll, ModeInterrupt:
		return Mode(s), nil
	}
	return "", fmt.Errorf("keypad: unknown mode %q (want %q or %q)", s, ModePoll, ModeInterrupt)
}

// Config is fixed when the Driver is created.
type Config struct {
	Mode         Mode
	PollInterval time.Duration // poll mode only
	ReleasePoll  time.Duration // irq mode: re-sweep interval while a key is held, 0 to wait for edges
	Capacity     int
	Rows         []int
	Cols         []int
}

// Driver owns the buffer, matrix state and acquisition front end of one
// keypad.
type Driver struct {
	cfg     Config
	lines   gpio.Lines
	buf     *CircularBuffer
	scanner *Scanner
	reader  *Reader

	handler  *InterruptHandler
	dispatch *Dispatcher

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Driver over lines. Interrupt mode requires lines to also
// implement gpio.Notifier. Zero config fields take their defaults.
func New(lines gpio.Lines, cfg Config) (*Driver, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModePoll
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Rows == nil {
		cfg.Rows = gpio.DefaultRows
	}
	if cfg.Cols == nil {
		cfg.Cols = gpio.DefaultCols
	}

	buf := NewCircularBuffer(cfg.Capacity)
	scanner, err := NewScanner(lines, cfg.Rows, cfg.Cols, buf)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:     cfg,
		lines:   lines,
		buf:     buf,
		scanner: scanner,
		reader:  NewReader(buf),
	}

	if cfg.Mode == ModeInterrupt {
		n, ok := lines.(gpio.Notifier)
		if !ok {
			return nil, errors.New("keypad: interrupt mode needs lines with edge notification")
		}
		d.dispatch = NewDispatcher()
		d.handler = NewInterruptHandler(scanner, n, d.dispatch)
		d.handler.Release = cfg.ReleasePoll
	}
	return d, nil
}

// Start launches the acquisition front end. In poll mode the poller runs
// until ctx is done or Close is called.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("keypad: driver closed")
	}
	if d.started {
		return errors.New("keypad: driver already started")
	}
	d.started = true

	switch d.cfg.Mode {
	case ModePoll:
		ctx, cancel := context.WithCancel(ctx)
		d.cancel = cancel
		p := &Poller{Scanner: d.scanner, Interval: d.cfg.PollInterval}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			p.Run(ctx)
		}()
	case ModeInterrupt:
		d.handler.Arm()
		log.Printf("keypad: armed for edges on pins %v", d.cfg.Cols)
	}
	return nil
}

// Close stops the front end, waits for an in-flight sweep to finish,
// discards any queued sweep and drives the rows Low. It does not close the
// lines.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	cancel := d.cancel
	d.mu.Unlock()

	if d.handler != nil {
		d.handler.Disarm()
	}
	if d.dispatch != nil {
		d.dispatch.Close()
	}
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	d.scanner.Idle()
	return nil
}

// Read drains buffered keys into p without blocking.
func (d *Driver) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

// Sweep runs one scan pass directly. It is meant for one-shot use before
// Start or on a driver that was never started.
func (d *Driver) Sweep() []byte {
	return d.scanner.Sweep()
}

// Held returns the keys sampled High during the last sweep.
func (d *Driver) Held() []byte {
	return d.scanner.Held()
}

// Buffered returns the number of unread keys.
func (d *Driver) Buffered() int {
	return d.buf.Len()
}

// Stats returns the driver counters.
func (d *Driver) Stats() Stats {
	return d.scanner.stats.snapshot()
}

// Mode returns the acquisition mode.
func (d *Driver) Mode() Mode {
	return d.cfg.Mode
}

// HandlerState returns the interrupt handler state; always Armed in poll mode.
func (d *Driver) HandlerState() HandlerState {
	if d.handler == nil {
		return Armed
	}
	return d.handler.State()
}
