package sim

import (
	"sounder-sim/internal/config"
	"sounder-sim/internal/telemetry"
	"sounder-sim/internal/transport"
)

// BusWriter publishes status and alert rows as wire messages on the bus.
type BusWriter struct {
	bus    transport.Bus
	topics config.Topics
}

// NewBusWriter creates a BusWriter publishing on the status and alerts topics.
func NewBusWriter(bus transport.Bus, topics config.Topics) *BusWriter {
	return &BusWriter{bus: bus, topics: topics}
}

// Write publishes a STATUS_UPDATE message.
func (w *BusWriter) Write(row telemetry.StatusRow) error {
	msg, err := telemetry.StatusMessage(row.State)
	if err != nil {
		return err
	}
	return w.bus.Publish(w.topics.Status, []byte(msg))
}

// WriteAlert publishes an ALERT message.
func (w *BusWriter) WriteAlert(row telemetry.AlertRow) error {
	msg, err := telemetry.AlertMessage(row.Alert)
	if err != nil {
		return err
	}
	return w.bus.Publish(w.topics.Alerts, []byte(msg))
}
