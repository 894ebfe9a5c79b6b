package transport

import (
	"context"
	"sync"
)

// Message is one payload recorded by MemoryBus.
type Message struct {
	Topic   string
	Payload []byte
}

// MemoryBus is an in-process Bus. Handlers are invoked synchronously on the
// publishing goroutine, in publish order. It backs offline mode and tests and
// keeps the most recent published messages.
type MemoryBus struct {
	// ConnectErr, when set, is returned by Connect.
	ConnectErr error

	mu        sync.Mutex
	connected bool
	subs      map[string][]Handler
	log       []Message
	limit     int
}

const defaultHistory = 1024

// NewMemoryBus returns an unconnected bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]Handler), limit: defaultHistory}
}

func (m *MemoryBus) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryBus) Subscribe(topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.subs[topic] = append(m.subs[topic], h)
	return nil
}

func (m *MemoryBus) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	p := append([]byte(nil), payload...)
	m.log = append(m.log, Message{Topic: topic, Payload: p})
	if len(m.log) > m.limit {
		m.log = m.log[len(m.log)-m.limit:]
	}
	handlers := append([]Handler(nil), m.subs[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(topic, p)
	}
	return nil
}

func (m *MemoryBus) Disconnect() {
	m.mu.Lock()
	m.connected = false
	m.subs = make(map[string][]Handler)
	m.mu.Unlock()
}

func (m *MemoryBus) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Messages returns the payloads published on topic, oldest first.
func (m *MemoryBus) Messages(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.log {
		if msg.Topic == topic {
			out = append(out, string(msg.Payload))
		}
	}
	return out
}
