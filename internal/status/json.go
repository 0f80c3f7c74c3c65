package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	State         string       `json:"state"`
	LastKey       string       `json:"last_key,omitempty"`
	LastKeyTime   string       `json:"last_key_time,omitempty"`
	Buffered      int          `json:"buffered"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the driver counters.
type CountsJSON struct {
	Sweeps           uint64 `json:"sweeps"`
	Keys             uint64 `json:"keys"`
	KeysRead         uint64 `json:"keys_read"`
	Dropped          uint64 `json:"dropped"`
	LineErrors       uint64 `json:"line_errors"`
	Edges            uint64 `json:"edges"`
	Coalesced        uint64 `json:"coalesced"`
	ScheduleFailures uint64 `json:"schedule_failures"`
	SerialWritten    uint64 `json:"serial_written,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode        string `json:"mode"`
	PollMs      int64  `json:"poll_ms"`
	DrainMs     int64  `json:"drain_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Capacity    int    `json:"buffer_capacity"`
	Rows        []int  `json:"rows"`
	Cols        []int  `json:"cols"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Serial      string `json:"serial,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:          snap.Config.Mode,
		State:         snap.HandlerState,
		Buffered:      snap.Buffered,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Sweeps:           snap.Keypad.Sweeps,
			Keys:             snap.Keypad.Keys,
			KeysRead:         snap.KeysRead,
			Dropped:          snap.Keypad.Dropped,
			LineErrors:       snap.Keypad.LineErrors,
			Edges:            snap.Keypad.Edges,
			Coalesced:        snap.Keypad.Coalesced,
			ScheduleFailures: snap.Keypad.ScheduleFailures,
			SerialWritten:    snap.SerialWritten,
		},
		Config: ConfigJSON{
			Mode:        snap.Config.Mode,
			PollMs:      snap.Config.PollMs,
			DrainMs:     snap.Config.DrainMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Capacity:    snap.Config.Capacity,
			Rows:        snap.Config.Rows,
			Cols:        snap.Config.Cols,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Serial:      snap.Config.Serial,
		},
	}
	if snap.LastKey != 0 {
		inner.LastKey = string(rune(snap.LastKey))
		inner.LastKeyTime = snap.LastKeyTime.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
