package keypad

import (
	"errors"
	"sync"
)

// ErrScheduleFailed is returned when deferred work cannot be queued.
var ErrScheduleFailed = errors.New("keypad: deferred work not scheduled")

// Scheduler queues work to run outside the caller's context.
type Scheduler interface {
	// Schedule queues work without blocking.
	Schedule(work func()) error
}

// Dispatcher runs deferred work, one item at a time, on a single worker
// goroutine. At most one item waits in the queue; Schedule fails rather
// than blocks when that slot is taken.
type Dispatcher struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewDispatcher starts the worker goroutine.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		queue: make(chan func(), 1),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case work := <-d.queue:
			select {
			case <-d.done:
				return
			default:
			}
			work()
		}
	}
}

// Schedule queues work. It never blocks, and fails with ErrScheduleFailed
// when the dispatcher is closed or an item is already queued.
func (d *Dispatcher) Schedule(work func()) error {
	select {
	case <-d.done:
		return ErrScheduleFailed
	default:
	}
	select {
	case d.queue <- work:
		return nil
	default:
		return ErrScheduleFailed
	}
}

// Pending reports the number of queued items not yet started.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops the worker and waits for the running item, if any, to
// finish. Queued items that have not started are discarded. Close must not
// be called from deferred work.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
	for {
		select {
		case <-d.queue:
		default:
			return
		}
	}
}
