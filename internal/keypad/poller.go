package keypad

import (
	"context"
	"log"
	"time"
)

// DefaultPollInterval is the pause between two polling sweeps. It must be
// longer than the contact bounce of the keys.
const DefaultPollInterval = 20 * time.Millisecond

// Poller runs a sweep, then sleeps for Interval, until its context is done.
type Poller struct {
	Scanner  *Scanner
	Interval time.Duration
}

// Run blocks until ctx is cancelled. Cancellation is honoured during the
// sleep, so Run returns within one interval of being asked to stop.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log.Printf("keypad: polling every %v", interval)

	for ctx.Err() == nil {
		p.Scanner.Sweep()

		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
	}
	log.Printf("keypad: polling stopped")
}
