package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

func TestStdoutWriterJSONFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &StdoutWriter{out: buf}
	row := telemetry.StatusRow{DeviceID: "d1", Tick: 4, State: device.InitialState(), Timestamp: time.Unix(0, 0)}
	if err := w.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got telemetry.StatusRow
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if got.Tick != 4 || got.State.Cameras["rear"] != device.CameraOffline {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestStdoutWriterColorized(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &StdoutWriter{cfg: config.Default(), colorize: true, out: buf}
	row := telemetry.StatusRow{DeviceID: "d1", Tick: 1, State: device.InitialState(), Timestamp: time.Unix(0, 0)}
	if err := w.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Device Configuration:") || !strings.Contains(output, "Cameras:") {
		t.Fatalf("overview not printed: %q", output)
	}
	if !strings.Contains(output, "\x1b[") || !strings.Contains(output, "device=d1") {
		t.Fatalf("expected colorized status line: %q", output)
	}

	buf.Reset()
	alert := telemetry.Catalog[0]
	alert.Timestamp = time.Unix(0, 0)
	if err := w.WriteAlert(telemetry.AlertRow{DeviceID: "d1", Alert: alert}); err != nil {
		t.Fatalf("alert write failed: %v", err)
	}
	if strings.Contains(buf.String(), "Device Configuration:") {
		t.Fatalf("overview printed more than once")
	}
	if !strings.Contains(buf.String(), "ALERT") {
		t.Fatalf("alert line missing: %q", buf.String())
	}
}
