package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FakeMatrix is a test double that simulates a key matrix wired to row
// (output) and column (input) lines. A column reads High while any pressed
// key in that column sits on a row that is driven High.
//
// Rising column edges are delivered to the edge handler synchronously, from
// whichever goroutine caused them (SetLine or Press), unless Delay is set.
type FakeMatrix struct {
	mu sync.Mutex

	rows []int
	cols []int

	driven  map[int]int
	pressed [][]bool
	gate    *edgeGate
	clock   atomic.Int64
	handler func(id int)

	// LeakEdges delivers edges even while a line's notification is
	// disabled, like a controller that re-enables the interrupt straight
	// after scheduling the handler.
	LeakEdges bool

	// Delay queues every rising edge and delivers it from another
	// goroutine that long after it happened, the way a GPIO event queue is
	// read out by a watcher. The mask is checked at delivery, and edges
	// that happened before their line was last enabled are dropped.
	Delay time.Duration

	// ReadError, if set, will be returned by GetLine.
	ReadError error

	// SetError, if set, will be returned by SetLine.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	// Edges counts rising column edges that reached the handler.
	Edges int

	// Sets records every SetLine call in order.
	Sets []LineWrite
}

// LineWrite is one recorded SetLine call.
type LineWrite struct {
	ID    int
	Level int
}

// NewFakeMatrix creates a FakeMatrix with all rows driven Low and no key pressed.
func NewFakeMatrix(rows, cols []int) *FakeMatrix {
	f := &FakeMatrix{
		rows:   append([]int(nil), rows...),
		cols:   append([]int(nil), cols...),
		driven: make(map[int]int),
		gate:   newEdgeGate(cols, false),
	}
	f.pressed = make([][]bool, len(rows))
	for i := range f.pressed {
		f.pressed[i] = make([]bool, len(cols))
	}
	return f
}

// SetLine drives a row line and fires edges for columns that went High.
func (f *FakeMatrix) SetLine(id, level int) error {
	f.mu.Lock()
	if f.SetError != nil {
		err := f.SetError
		f.mu.Unlock()
		return err
	}
	if f.rowIndex(id) < 0 {
		f.mu.Unlock()
		return fmt.Errorf("fake: line %d is not an output", id)
	}
	before := f.columnLevels()
	f.driven[id] = level
	f.Sets = append(f.Sets, LineWrite{ID: id, Level: level})
	fire, at := f.risen(before)
	f.mu.Unlock()

	f.deliver(fire, at)
	return nil
}

// GetLine returns the simulated level of a column line.
func (f *FakeMatrix) GetLine(id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Low, f.ReadError
	}
	c := f.colIndex(id)
	if c < 0 {
		return Low, fmt.Errorf("fake: line %d is not an input", id)
	}
	return f.columnLevels()[c], nil
}

// Close marks the matrix as closed.
func (f *FakeMatrix) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// SetEdgeHandler registers the rising-edge callback.
func (f *FakeMatrix) SetEdgeHandler(fn func(id int)) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

// EnableNotification unmasks edges on line id.
func (f *FakeMatrix) EnableNotification(id int) {
	f.gate.enable(id, f.now())
}

// DisableNotification masks edges on line id.
func (f *FakeMatrix) DisableNotification(id int) {
	f.gate.disable(id)
}

// Masked reports whether edges on line id are currently masked.
func (f *FakeMatrix) Masked(id int) bool {
	return f.gate.isMasked(id)
}

// now ticks a logical clock, so that of an edge and an enable the one that
// happened later always reads later.
func (f *FakeMatrix) now() time.Duration {
	return time.Duration(f.clock.Add(1))
}

// Press holds down the key at (row, col), given as matrix indexes.
func (f *FakeMatrix) Press(row, col int) {
	f.setKey(row, col, true)
}

// Release lets go of the key at (row, col).
func (f *FakeMatrix) Release(row, col int) {
	f.setKey(row, col, false)
}

// Level returns the level a row line is driven to.
func (f *FakeMatrix) Level(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.driven[id]
}

// EdgeCount returns Edges under the lock.
func (f *FakeMatrix) EdgeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Edges
}

func (f *FakeMatrix) setKey(row, col int, down bool) {
	f.mu.Lock()
	before := f.columnLevels()
	f.pressed[row][col] = down
	fire, at := f.risen(before)
	f.mu.Unlock()

	f.deliver(fire, at)
}

// risen returns the column lines that went High since before and the clock
// reading they went High at. Without Delay only lines allowed to notify now
// are returned. Must be called with mu held.
func (f *FakeMatrix) risen(before []int) ([]int, time.Duration) {
	if f.handler == nil {
		return nil, 0
	}
	at := f.now()
	var fire []int
	for c, lvl := range f.columnLevels() {
		id := f.cols[c]
		if before[c] != Low || lvl != High {
			continue
		}
		if f.Delay > 0 {
			fire = append(fire, id)
			continue
		}
		if f.LeakEdges || !f.gate.isMasked(id) {
			fire = append(fire, id)
			f.Edges++
		}
	}
	return fire, at
}

func (f *FakeMatrix) deliver(ids []int, at time.Duration) {
	if len(ids) == 0 {
		return
	}
	if f.Delay > 0 {
		for _, id := range ids {
			time.AfterFunc(f.Delay, func() { f.deliverLate(id, at) })
		}
		return
	}
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	for _, id := range ids {
		h(id)
	}
}

func (f *FakeMatrix) deliverLate(id int, at time.Duration) {
	f.mu.Lock()
	h := f.handler
	ok := h != nil && (f.LeakEdges || f.gate.admit(id, at))
	if ok {
		f.Edges++
	}
	f.mu.Unlock()
	if ok {
		h(id)
	}
}

// columnLevels must be called with mu held.
func (f *FakeMatrix) columnLevels() []int {
	levels := make([]int, len(f.cols))
	for r, row := range f.rows {
		if f.driven[row] != High {
			continue
		}
		for c := range f.cols {
			if f.pressed[r][c] {
				levels[c] = High
			}
		}
	}
	return levels
}

func (f *FakeMatrix) rowIndex(id int) int {
	for i, r := range f.rows {
		if r == id {
			return i
		}
	}
	return -1
}

func (f *FakeMatrix) colIndex(id int) int {
	for i, c := range f.cols {
		if c == id {
			return i
		}
	}
	return -1
}
