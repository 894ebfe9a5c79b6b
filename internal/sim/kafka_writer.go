package sim

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"sounder-sim/internal/config"
	"sounder-sim/internal/telemetry"
)

const kafkaWriteTimeout = 5 * time.Second

// Record kinds carried in the "kind" header of mirrored messages.
const (
	kindStatus  = "status"
	kindAlert   = "alert"
	kindCommand = "command"
)

// messageWriter is the part of kafka.Writer used here; tests substitute it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter mirrors status, alert and command rows to a Kafka topic keyed by device id.
type KafkaWriter struct {
	w messageWriter
}

// NewKafkaWriter creates an async producer for cfg.
func NewKafkaWriter(cfg config.KafkaConfig) *KafkaWriter {
	return &KafkaWriter{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}}
}

func (k *KafkaWriter) send(deviceID, kind string, ts time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
	defer cancel()
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(deviceID),
		Value:   payload,
		Time:    ts,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	})
}

// Write mirrors a status row.
func (k *KafkaWriter) Write(row telemetry.StatusRow) error {
	return k.send(row.DeviceID, kindStatus, row.Timestamp, row)
}

// WriteAlert mirrors an alert row.
func (k *KafkaWriter) WriteAlert(row telemetry.AlertRow) error {
	return k.send(row.DeviceID, kindAlert, row.Alert.Timestamp, row)
}

// WriteCommand mirrors a command row.
func (k *KafkaWriter) WriteCommand(row telemetry.CommandRow) error {
	return k.send(row.DeviceID, kindCommand, row.Timestamp, row)
}

// Close flushes pending messages.
func (k *KafkaWriter) Close() error {
	return k.w.Close()
}
