// Package transport carries device traffic over a publish/subscribe bus.
package transport

import (
	"context"
	"errors"
)

// Handler receives one inbound message.
type Handler func(topic string, payload []byte)

// Bus is the pub/sub surface the simulator needs.
type Bus interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, h Handler) error
	Publish(topic string, payload []byte) error
	Disconnect()
	Connected() bool
}

// ErrNotConnected is returned by Publish and Subscribe before a successful Connect
// or after Disconnect.
var ErrNotConnected = errors.New("bus not connected")

var (
	_ Bus = (*MQTTBus)(nil)
	_ Bus = (*MemoryBus)(nil)
)
