// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera declares one camera of the simulated device and its initial status.
type Camera struct {
	ID     string `yaml:"id"`
	Status string `yaml:"status"`
}

// DeviceConfig holds the identity and initial state of the simulated sounder.
type DeviceConfig struct {
	ID          string   `yaml:"id"`
	DangerLevel string   `yaml:"danger_level"`
	TargetCount int      `yaml:"target_count"`
	Cameras     []Camera `yaml:"cameras"`
}

// Topics names the pub/sub topics used on the broker.
type Topics struct {
	Commands  string `yaml:"commands"`
	Responses string `yaml:"responses"`
	Status    string `yaml:"status"`
	Alerts    string `yaml:"alerts"`
}

// BrokerConfig describes the MQTT broker connection.
type BrokerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ClientID       string        `yaml:"client_id"`
	QoS            int           `yaml:"qos"`
	KeepAlive      time.Duration `yaml:"keepalive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Topics         Topics        `yaml:"topics"`
}

// URL returns the broker address in paho form.
func (b BrokerConfig) URL() string {
	return fmt.Sprintf("tcp://%s:%d", b.Host, b.Port)
}

// TelemetryConfig drives the periodic status/alert scheduler.
type TelemetryConfig struct {
	Interval         time.Duration `yaml:"interval"`
	AlertEvery       int           `yaml:"alert_every"`
	AlertProbability float64       `yaml:"alert_probability"`
}

// Channel is one synthetic camera stream.
type Channel struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Port     int    `yaml:"port"`
}

// StreamConfig configures the video channels.
type StreamConfig struct {
	Host     string    `yaml:"host"`
	FPS      int       `yaml:"fps"`
	Quality  int       `yaml:"quality"`
	Width    int       `yaml:"width"`
	Height   int       `yaml:"height"`
	Channels []Channel `yaml:"channels"`
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// GreptimeConfig configures the GreptimeDB sink. An empty endpoint disables it.
type GreptimeConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Database    string `yaml:"database"`
	StatusTable string `yaml:"status_table"`
	AlertTable  string `yaml:"alert_table"`
}

// KafkaConfig configures the Kafka mirror sink. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SinksConfig groups the optional telemetry sinks.
type SinksConfig struct {
	LogFile  string         `yaml:"log_file"`
	Greptime GreptimeConfig `yaml:"greptime"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Broker    BrokerConfig    `yaml:"broker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stream    StreamConfig    `yaml:"stream"`
	Admin     AdminConfig     `yaml:"admin"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration the device ships with.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:          "sounder-01",
			DangerLevel: "low",
			Cameras: []Camera{
				{ID: "main", Status: "online"},
				{ID: "side", Status: "online"},
				{ID: "rear", Status: "offline"},
			},
		},
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			ClientID:       "sounder-sim",
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 5 * time.Second,
			Topics: Topics{
				Commands:  "sounder/commands",
				Responses: "sounder/responses",
				Status:    "sounder/status",
				Alerts:    "sounder/alerts",
			},
		},
		Telemetry: TelemetryConfig{
			Interval:         10 * time.Second,
			AlertEvery:       3,
			AlertProbability: 0.5,
		},
		Stream: StreamConfig{
			Host:    "0.0.0.0",
			FPS:     30,
			Quality: 80,
			Width:   640,
			Height:  480,
			Channels: []Channel{
				{ID: "main", Name: "Main Monitor", Location: "entrance", Port: 12346},
				{ID: "side", Name: "Side Monitor", Location: "corridor", Port: 12347},
				{ID: "rear", Name: "Rear Monitor", Location: "back gate", Port: 12348},
			},
		},
		Admin: AdminConfig{Addr: ":8080"},
		Sinks: SinksConfig{
			Greptime: GreptimeConfig{
				Database:    "public",
				StatusTable: "sounder_status",
				AlertTable:  "sounder_alerts",
			},
			Kafka: KafkaConfig{Topic: "sounder-telemetry"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load returns the default configuration overlaid with the YAML file at path
// (validated against the embedded CUE schema) and with environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := ValidateWithCue(path, data); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("MQTT_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("MQTT_BROKER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_BROKER_PORT: %w", err)
		}
		cfg.Broker.Port = p
	}
	if v := os.Getenv("DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("TELEMETRY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TELEMETRY_INTERVAL: %w", err)
		}
		cfg.Telemetry.Interval = d
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		cfg.Sinks.Greptime.Endpoint = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Sinks.Kafka.Brokers = brokers
	}
	return nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, fmt.Errorf("broker.qos must be 0, 1 or 2"))
	}
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, errors.New("telemetry.interval must be positive"))
	}
	if c.Telemetry.AlertEvery <= 0 {
		errs = append(errs, errors.New("telemetry.alert_every must be positive"))
	}
	if p := c.Telemetry.AlertProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("telemetry.alert_probability %v not in [0,1]", p))
	}
	if len(c.Device.Cameras) == 0 {
		errs = append(errs, errors.New("device.cameras must not be empty"))
	}
	seenCam := make(map[string]bool)
	for _, cam := range c.Device.Cameras {
		if cam.ID == "" {
			errs = append(errs, errors.New("device.cameras: empty id"))
		}
		if seenCam[cam.ID] {
			errs = append(errs, fmt.Errorf("device.cameras: duplicate id %q", cam.ID))
		}
		seenCam[cam.ID] = true
	}
	if c.Stream.FPS <= 0 {
		errs = append(errs, errors.New("stream.fps must be positive"))
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		errs = append(errs, fmt.Errorf("stream.quality %d not in [1,100]", c.Stream.Quality))
	}
	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		errs = append(errs, errors.New("stream dimensions must be positive"))
	}
	ids := make(map[string]bool)
	ports := make(map[int]bool)
	for _, ch := range c.Stream.Channels {
		if ids[ch.ID] {
			errs = append(errs, fmt.Errorf("stream.channels: duplicate id %q", ch.ID))
		}
		if ports[ch.Port] {
			errs = append(errs, fmt.Errorf("stream.channels: duplicate port %d", ch.Port))
		}
		if ch.Port <= 0 || ch.Port > 65535 {
			errs = append(errs, fmt.Errorf("stream.channels: port %d out of range", ch.Port))
		}
		ids[ch.ID] = true
		ports[ch.Port] = true
	}
	return errors.Join(errs...)
}

// Channel returns the stream channel bound to port.
func (c *Config) Channel(port int) (Channel, bool) {
	for _, ch := range c.Stream.Channels {
		if ch.Port == port {
			return ch, true
		}
	}
	return Channel{}, false
}
