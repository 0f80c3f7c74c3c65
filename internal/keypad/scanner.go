package keypad

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sweeney/keypad-driver/internal/gpio"
)

// counters are updated by the scan path and read by Stats.
type counters struct {
	sweeps     atomic.Uint64
	keys       atomic.Uint64
	dropped    atomic.Uint64
	lineErrors atomic.Uint64
	edges      atomic.Uint64
	coalesced  atomic.Uint64
	schedFails atomic.Uint64
}

// Stats is a point-in-time copy of the driver counters.
type Stats struct {
	Sweeps           uint64 // completed sweeps
	Keys             uint64 // keys appended to the buffer
	Dropped          uint64 // keys lost to a full buffer
	LineErrors       uint64 // failed line reads or writes
	Edges            uint64 // edges that scheduled a sweep
	Coalesced        uint64 // edges absorbed by a sweep already in flight
	ScheduleFailures uint64 // edges whose sweep could not be scheduled
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sweeps:           c.sweeps.Load(),
		Keys:             c.keys.Load(),
		Dropped:          c.dropped.Load(),
		LineErrors:       c.lineErrors.Load(),
		Edges:            c.edges.Load(),
		Coalesced:        c.coalesced.Load(),
		ScheduleFailures: c.schedFails.Load(),
	}
}

// Scanner sweeps the key matrix and appends newly pressed keys to a buffer.
type Scanner struct {
	lines gpio.Lines
	rows  [NumRows]int
	cols  [NumCols]int
	buf   *CircularBuffer
	stats *counters

	mu    sync.Mutex // held for a whole sweep
	state MatrixState
}

// NewScanner creates a Scanner for the given row (output) and column
// (input) line offsets.
func NewScanner(lines gpio.Lines, rows, cols []int, buf *CircularBuffer) (*Scanner, error) {
	if len(rows) != NumRows {
		return nil, fmt.Errorf("keypad: need %d row lines, got %d", NumRows, len(rows))
	}
	if len(cols) != NumCols {
		return nil, fmt.Errorf("keypad: need %d column lines, got %d", NumCols, len(cols))
	}
	s := &Scanner{lines: lines, buf: buf, stats: &counters{}}
	copy(s.rows[:], rows)
	copy(s.cols[:], cols)
	return s, nil
}

// Sweep runs one full scan pass: rows 0 to 3 in order, columns 0 to 2 in
// order, then drives every row High again so that a later press raises a
// column edge. It returns the keys appended, in detection order.
func (s *Scanner) Sweep() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emitted []byte
	for r := 0; r < NumRows; r++ {
		s.drive(ScanPattern[r])
		for c := 0; c < NumCols; c++ {
			v, err := s.lines.GetLine(s.cols[c])
			if err != nil {
				s.stats.lineErrors.Add(1)
				log.Printf("keypad: %v", err)
				continue
			}
			if !s.state.observe(r, c, v) || v != gpio.High {
				continue
			}
			k := KeyMap[r][c]
			if err := s.buf.Append(k); err != nil {
				if errors.Is(err, ErrBufferFull) {
					s.stats.dropped.Add(1)
					log.Printf("keypad: buffer full, dropping key %q", k)
				}
				continue
			}
			s.stats.keys.Add(1)
			emitted = append(emitted, k)
		}
	}
	s.Rearm()
	s.stats.sweeps.Add(1)
	return emitted
}

// Rearm drives every row line High.
func (s *Scanner) Rearm() {
	s.drive([NumRows]int{gpio.High, gpio.High, gpio.High, gpio.High})
}

// Idle drives every row line Low.
func (s *Scanner) Idle() {
	s.drive([NumRows]int{})
}

// Held returns the keys sampled High during the last sweep.
func (s *Scanner) Held() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Held()
}

// Columns returns the column line offsets.
func (s *Scanner) Columns() []int {
	return s.cols[:]
}

func (s *Scanner) drive(levels [NumRows]int) {
	for i, lvl := range levels {
		if err := s.lines.SetLine(s.rows[i], lvl); err != nil {
			s.stats.lineErrors.Add(1)
			log.Printf("keypad: %v", err)
		}
	}
}
