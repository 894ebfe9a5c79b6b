package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"sounder-sim/internal/config"
)

const (
	publishTimeout    = 2 * time.Second
	subscribeTimeout  = 5 * time.Second
	disconnectQuiesce = 250
)

// MQTTBus is a Bus backed by an MQTT broker. It makes a single connection
// attempt and does not reconnect; once lost, the instance stays disconnected.
type MQTTBus struct {
	cfg    config.BrokerConfig
	client mqtt.Client
	log    *slog.Logger

	// abandoned is set once Connect has reported failure.
	abandoned atomic.Bool

	mu        sync.RWMutex
	connected bool
	published uint64
	failures  uint64
}

// NewMQTTBus prepares a client for cfg. The client id gets a random suffix so
// several simulators can share a broker.
func NewMQTTBus(cfg config.BrokerConfig, log *slog.Logger) *MQTTBus {
	if log == nil {
		log = slog.Default()
	}
	b := &MQTTBus{cfg: cfg, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL())
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	// handlers run one at a time in arrival order
	opts.SetOrderMatters(true)

	opts.OnConnect = b.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.setConnected(false)
		b.log.Warn("mqtt connection lost", "broker", cfg.URL(), "err", err)
	}

	b.client = mqtt.NewClient(opts)
	return b
}

// Connect performs the single connection attempt, bounded by the configured
// connect timeout and by ctx.
func (b *MQTTBus) Connect(ctx context.Context) error {
	b.log.Info("connecting to mqtt broker", "broker", b.cfg.URL())
	timeout := b.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		b.abandon()
		return ctx.Err()
	case <-timer.C:
		b.abandon()
		return fmt.Errorf("mqtt connection timeout after %s", timeout)
	}
	if err := token.Error(); err != nil {
		b.abandon()
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	b.setConnected(true)
	return nil
}

// abandon marks the connect attempt as failed for good. The paho attempt may
// still be in flight; a late success is dropped by onConnect.
func (b *MQTTBus) abandon() {
	b.abandoned.Store(true)
	b.setConnected(false)
	go b.client.Disconnect(0)
}

func (b *MQTTBus) onConnect(c mqtt.Client) {
	if b.abandoned.Load() {
		b.log.Warn("dropping mqtt connection established after connect gave up", "broker", b.cfg.URL())
		go c.Disconnect(0)
		return
	}
	b.setConnected(true)
	b.log.Info("mqtt connection established", "broker", b.cfg.URL())
}

// Subscribe registers h for topic.
func (b *MQTTBus) Subscribe(topic string, h Handler) error {
	if !b.Connected() {
		return ErrNotConnected
	}
	token := b.client.Subscribe(topic, byte(b.cfg.QoS), func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	b.log.Info("subscribed", "topic", topic, "qos", b.cfg.QoS)
	return nil
}

// Publish sends payload on topic and waits for the broker acknowledgement.
func (b *MQTTBus) Publish(topic string, payload []byte) error {
	if !b.Connected() {
		b.countFailure()
		return ErrNotConnected
	}
	token := b.client.Publish(topic, byte(b.cfg.QoS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.countFailure()
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		b.countFailure()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.mu.Lock()
	b.published++
	b.mu.Unlock()
	return nil
}

// Disconnect closes the connection. Safe to call more than once.
func (b *MQTTBus) Disconnect() {
	if b.client.IsConnected() {
		b.client.Disconnect(disconnectQuiesce)
	}
	b.setConnected(false)
}

// Connected reports whether the connection is usable.
func (b *MQTTBus) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Stats returns published and failed publish counts.
func (b *MQTTBus) Stats() (published, failures uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published, b.failures
}

func (b *MQTTBus) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

func (b *MQTTBus) countFailure() {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()
}
