// Telemetry records with greptime tags
package telemetry

import (
	"time"

	"sounder-sim/internal/device"
)

// StatusRow is one periodic snapshot of the device state.
type StatusRow struct {
	DeviceID  string       `json:"device_id"` // TAG
	Tick      int64        `json:"tick"`      // FIELD
	State     device.State `json:"state"`     // FIELD
	Timestamp time.Time    `json:"ts"`        // TIME INDEX
}

// AlertRow wraps a generated alert with the emitting device.
type AlertRow struct {
	DeviceID string `json:"device_id"` // TAG
	Alert    Alert  `json:"alert"`
}

// Command sources.
const (
	SourceMQTT     = "mqtt"
	SourceAdmin    = "admin"
	SourceConsole  = "console"
	SourceScenario = "scenario"
)

// CommandRow records one interpreted command and its reply.
type CommandRow struct {
	DeviceID  string    `json:"device_id"` // TAG
	Source    string    `json:"source"`    // TAG
	Command   string    `json:"command"`   // FIELD
	Response  string    `json:"response"`  // FIELD
	Timestamp time.Time `json:"ts"`        // TIME INDEX
}
