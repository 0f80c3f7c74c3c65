// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for key events.
const Topic = "home/keypad/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/keypad/system"

// EventKeyPress is the event name for a decoded key.
const EventKeyPress = "KEY_PRESS"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a key event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event KeyEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// KeyEvent is one key read from the keypad character stream.
type KeyEvent struct {
	Timestamp time.Time
	Key       byte
	Seq       uint64 // position in the stream since startup, from 1
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Keypad KeypadPayload `json:"keypad"`
}

// KeypadPayload contains the key event details.
type KeypadPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Key       string `json:"key"`
	Seq       uint64 `json:"seq"`
}

// FormatPayload creates the JSON payload for a key event.
func FormatPayload(event KeyEvent) ([]byte, error) {
	payload := Payload{
		Keypad: KeypadPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     EventKeyPress,
			Key:       string(rune(event.Key)),
			Seq:       event.Seq,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
