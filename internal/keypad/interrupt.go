package keypad

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/keypad-driver/internal/gpio"
)

// HandlerState is the state of an InterruptHandler.
type HandlerState int

const (
	// Armed means the next rising edge schedules a sweep.
	Armed HandlerState = iota
	// Scanning means a sweep is queued or running.
	Scanning
)

func (s HandlerState) String() string {
	if s == Scanning {
		return "SCANNING"
	}
	return "ARMED"
}

// InterruptHandler turns column edges into deferred sweeps.
//
// The scanning flag stays set from the edge that schedules a sweep until
// the sweep has driven the rows High again, so the edges raised by the
// sweep itself cannot schedule another one.
//
// Only rising edges are delivered, so a release is not seen until the next
// sweep. With Release set, a sweep that leaves keys held schedules another
// sweep after that interval, and the handler re-arms only once the matrix
// is clear.
type InterruptHandler struct {
	scanner  *Scanner
	notifier gpio.Notifier
	sched    Scheduler
	stats    *counters

	// Release is the re-sweep interval while keys are held. Zero waits
	// for the next edge instead. Set it before Arm.
	Release time.Duration

	scanning atomic.Bool
	closed   atomic.Bool

	mu    sync.Mutex // guards timer against Disarm
	timer *time.Timer
}

// NewInterruptHandler creates a handler. Call Arm to start reacting to edges.
func NewInterruptHandler(scanner *Scanner, notifier gpio.Notifier, sched Scheduler) *InterruptHandler {
	return &InterruptHandler{
		scanner:  scanner,
		notifier: notifier,
		sched:    sched,
		stats:    scanner.stats,
	}
}

// Arm registers the edge handler, drives the rows High and enables
// notifications on every column.
func (h *InterruptHandler) Arm() {
	h.notifier.SetEdgeHandler(h.HandleEdge)
	h.scanner.Rearm()
	h.enable()
}

// HandleEdge is the edge notification entry point. It does not block: it
// masks further notifications and schedules one sweep, or returns at once
// if a sweep is already in flight.
func (h *InterruptHandler) HandleEdge(id int) {
	if h.closed.Load() {
		return
	}
	if !h.scanning.CompareAndSwap(false, true) {
		h.stats.coalesced.Add(1)
		return
	}
	h.disable()
	if h.schedule() {
		h.stats.edges.Add(1)
	}
}

// schedule queues a sweep while the guard is held. On failure it releases
// the guard and re-enables notifications.
func (h *InterruptHandler) schedule() bool {
	if err := h.sched.Schedule(h.sweep); err != nil {
		h.stats.schedFails.Add(1)
		h.rearm()
		return false
	}
	return true
}

// sweep runs as deferred work.
func (h *InterruptHandler) sweep() {
	h.scanner.Sweep()
	if h.Release > 0 && len(h.scanner.Held()) > 0 {
		h.mu.Lock()
		if !h.closed.Load() {
			h.timer = time.AfterFunc(h.Release, h.followUp)
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
	}
	h.rearm()
}

func (h *InterruptHandler) followUp() {
	if h.closed.Load() {
		h.scanning.Store(false)
		return
	}
	h.schedule()
}

// rearm clears the guard, then lets edges through again.
func (h *InterruptHandler) rearm() {
	h.scanning.Store(false)
	if !h.closed.Load() {
		h.enable()
	}
}

// State reports whether the handler is Armed or Scanning.
func (h *InterruptHandler) State() HandlerState {
	if h.scanning.Load() {
		return Scanning
	}
	return Armed
}

// Disarm masks every column, cancels a pending release sweep and ignores
// later edges. Deferred work already scheduled still runs unless the
// scheduler is stopped.
func (h *InterruptHandler) Disarm() {
	h.closed.Store(true)
	h.mu.Lock()
	if h.timer != nil && h.timer.Stop() {
		h.scanning.Store(false)
	}
	h.mu.Unlock()
	h.disable()
}

func (h *InterruptHandler) enable() {
	for _, id := range h.scanner.Columns() {
		h.notifier.EnableNotification(id)
	}
}

func (h *InterruptHandler) disable() {
	for _, id := range h.scanner.Columns() {
		h.notifier.DisableNotification(id)
	}
}
