package gpio

import (
	"sync/atomic"
	"time"
)

// edgeGate holds the notification mask of each input line and the time the
// line was last unmasked. Edges reach the handler only while their line is
// unmasked and only if they happened after it was unmasked: an edge queued
// while the line was masked and read out later is stale.
//
// The line set is fixed by newEdgeGate; only the per-line values change.
type edgeGate struct {
	lines map[int]*gateLine
}

type gateLine struct {
	masked atomic.Bool
	since  atomic.Int64 // clock reading at the last enable, in ns
}

func newEdgeGate(ids []int, masked bool) *edgeGate {
	g := &edgeGate{lines: make(map[int]*gateLine, len(ids))}
	for _, id := range ids {
		l := &gateLine{}
		l.masked.Store(masked)
		g.lines[id] = l
	}
	return g
}

// enable unmasks id as of now.
func (g *edgeGate) enable(id int, now time.Duration) {
	if l, ok := g.lines[id]; ok {
		l.since.Store(int64(now))
		l.masked.Store(false)
	}
}

func (g *edgeGate) disable(id int) {
	if l, ok := g.lines[id]; ok {
		l.masked.Store(true)
	}
}

func (g *edgeGate) isMasked(id int) bool {
	l, ok := g.lines[id]
	return ok && l.masked.Load()
}

// admit reports whether an edge on id that happened at the given clock
// reading should reach the handler.
func (g *edgeGate) admit(id int, at time.Duration) bool {
	l, ok := g.lines[id]
	if !ok || l.masked.Load() {
		return false
	}
	return int64(at) >= l.since.Load()
}
