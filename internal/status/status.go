// Package status provides a thread-safe status tracker for the keypad daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keypad-driver/internal/keypad"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Mode        string
	PollMs      int64
	DrainMs     int64
	HeartbeatMs int64
	Capacity    int
	Rows        []int
	Cols        []int
	Broker      string
	HTTPPort    string
	Serial      string // serial sink device (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Keypad        keypad.Stats
	HandlerState  string
	Buffered      int
	KeysRead      uint64
	LastKey       byte // 0 until the first key is read
	LastKeyTime   time.Time
	SerialWritten uint64 // bytes sent to the serial sink
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:    startTime,
			HandlerState: keypad.Armed.String(),
			Config:       cfg,
		},
	}
}

// Update sets the driver counters, handler state and buffer fill.
// Called from runLoop on every drain tick.
func (t *Tracker) Update(stats keypad.Stats, state keypad.HandlerState, buffered int) {
	t.mu.Lock()
	t.snap.Keypad = stats
	t.snap.HandlerState = state.String()
	t.snap.Buffered = buffered
	t.mu.Unlock()
}

// RecordKey notes a key read from the character stream.
func (t *Tracker) RecordKey(key byte, at time.Time) {
	t.mu.Lock()
	t.snap.KeysRead++
	t.snap.LastKey = key
	t.snap.LastKeyTime = at
	t.mu.Unlock()
}

// SetSerialWritten sets the byte count of the serial sink.
func (t *Tracker) SetSerialWritten(n uint64) {
	t.mu.Lock()
	t.snap.SerialWritten = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
