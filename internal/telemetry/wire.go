package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sounder-sim/internal/device"
)

// Wire prefixes for messages published on the status and alert topics.
const (
	StatusPrefix = "STATUS_UPDATE:"
	AlertPrefix  = "ALERT:"
)

// StatusMessage renders the periodic status payload.
func StatusMessage(st device.State) (string, error) {
	data, err := st.Encode()
	if err != nil {
		return "", err
	}
	return StatusPrefix + string(data), nil
}

// AlertMessage renders an alert payload.
func AlertMessage(a Alert) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return "", err
	}
	return AlertPrefix + strings.TrimRight(buf.String(), "\n"), nil
}

// ParseStatusMessage decodes a STATUS_UPDATE payload.
func ParseStatusMessage(msg string) (device.State, error) {
	body, ok := strings.CutPrefix(msg, StatusPrefix)
	if !ok {
		return device.State{}, fmt.Errorf("missing %s prefix", StatusPrefix)
	}
	return device.ParseState([]byte(body))
}

// ParseAlertMessage decodes an ALERT payload.
func ParseAlertMessage(msg string) (Alert, error) {
	body, ok := strings.CutPrefix(msg, AlertPrefix)
	if !ok {
		return Alert{}, fmt.Errorf("missing %s prefix", AlertPrefix)
	}
	var a Alert
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return Alert{}, fmt.Errorf("decode alert: %w", err)
	}
	return a, nil
}
