package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sounder.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
device:
  id: lab-sounder
  cameras:
    - id: main
      status: online
    - id: rear
      status: offline
broker:
  host: broker.local
  port: 1884
telemetry:
  interval: 2s
  alert_every: 5
stream:
  fps: 15
  channels:
    - id: main
      name: Main Monitor
      port: 13000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Device.ID != "lab-sounder" || len(cfg.Device.Cameras) != 2 {
		t.Errorf("unexpected device data: %+v", cfg.Device)
	}
	if cfg.Broker.URL() != "tcp://broker.local:1884" {
		t.Errorf("unexpected broker url %s", cfg.Broker.URL())
	}
	if cfg.Telemetry.Interval != 2*time.Second || cfg.Telemetry.AlertEvery != 5 {
		t.Errorf("unexpected telemetry: %+v", cfg.Telemetry)
	}
	// untouched keys keep their defaults
	if cfg.Telemetry.AlertProbability != 0.5 {
		t.Errorf("alert probability default lost: %v", cfg.Telemetry.AlertProbability)
	}
	if cfg.Broker.Topics.Commands != "sounder/commands" {
		t.Errorf("topic default lost: %+v", cfg.Broker.Topics)
	}
	if cfg.Stream.Quality != 80 || cfg.Stream.FPS != 15 {
		t.Errorf("unexpected stream: %+v", cfg.Stream)
	}
	if ch, ok := cfg.Channel(13000); !ok || ch.Name != "Main Monitor" {
		t.Errorf("channel lookup failed: %+v", ch)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "device:\n  colour: red\n"},
		{"bad qos", "broker:\n  qos: 3\n"},
		{"bad duration", "telemetry:\n  interval: soon\n"},
		{"bad probability", "telemetry:\n  alert_probability: 1.5\n"},
		{"bad camera status", "device:\n  cameras:\n    - id: main\n      status: broken\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker.Port != 1883 || cfg.Telemetry.Interval != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Stream.Channels) != 3 || cfg.Stream.Channels[0].Port != 12346 {
		t.Fatalf("unexpected channels: %+v", cfg.Stream.Channels)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER_HOST", "10.0.0.5")
	t.Setenv("MQTT_BROKER_PORT", "2883")
	t.Setenv("TELEMETRY_INTERVAL", "500ms")
	t.Setenv("DEVICE_ID", "env-device")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Broker.Host != "10.0.0.5" || cfg.Broker.Port != 2883 {
		t.Errorf("broker override failed: %+v", cfg.Broker)
	}
	if cfg.Telemetry.Interval != 500*time.Millisecond {
		t.Errorf("interval override failed: %v", cfg.Telemetry.Interval)
	}
	if cfg.Device.ID != "env-device" {
		t.Errorf("device id override failed: %s", cfg.Device.ID)
	}
	if len(cfg.Sinks.Kafka.Brokers) != 2 || cfg.Sinks.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("kafka override failed: %v", cfg.Sinks.Kafka.Brokers)
	}

	t.Setenv("MQTT_BROKER_PORT", "many")
	if err := ApplyEnv(Default()); err == nil {
		t.Fatalf("expected error for bad port")
	}
}

func TestValidateCrossField(t *testing.T) {
	cfg := Default()
	cfg.Stream.Channels = append(cfg.Stream.Channels, Channel{ID: "dup", Port: 12346})
	cfg.Device.Cameras = nil
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"duplicate port", "cameras must not be empty"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestShippedExampleMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "sounder.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Device.ID != def.Device.ID || len(cfg.Device.Cameras) != len(def.Device.Cameras) {
		t.Fatalf("device section differs: %+v", cfg.Device)
	}
	if cfg.Broker.Topics != def.Broker.Topics || cfg.Broker.KeepAlive != def.Broker.KeepAlive {
		t.Fatalf("broker section differs: %+v", cfg.Broker)
	}
	if cfg.Telemetry != def.Telemetry {
		t.Fatalf("telemetry section differs: %+v", cfg.Telemetry)
	}
	for i, ch := range cfg.Stream.Channels {
		if ch != def.Stream.Channels[i] {
			t.Fatalf("channel %d = %+v, want %+v", i, ch, def.Stream.Channels[i])
		}
	}
}
