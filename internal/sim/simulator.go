// Simulator orchestrating the device model, command dispatch and telemetry ticks
package sim

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/logging"
	"sounder-sim/internal/telemetry"
	"sounder-sim/internal/transport"
)

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.StatusRow) error
}

// AlertWriter handles generated alerts.
type AlertWriter interface {
	WriteAlert(telemetry.AlertRow) error
}

// CommandWriter records interpreted commands.
type CommandWriter interface {
	WriteCommand(telemetry.CommandRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.StatusRow) error
}

// ErrStopped is returned by Execute once the simulator has shut down.
var ErrStopped = errors.New("simulator stopped")

const inboxSize = 64

type request struct {
	raw    string
	source string
	reply  chan device.Response
}

// Stats are running counters exposed to the admin UI.
type Stats struct {
	DeviceID   string    `json:"device_id"`
	Connected  bool      `json:"connected"`
	Ticks      int64     `json:"ticks"`
	Alerts     int64     `json:"alerts"`
	Commands   int64     `json:"commands"`
	Errors     int64     `json:"errors"`
	LastStatus time.Time `json:"last_status"`
}

// Simulator owns the device state and drives command dispatch and the
// telemetry schedule.
type Simulator struct {
	deviceID      string
	cfg           *config.Config
	bus           transport.Bus
	store         *device.Store
	interp        *device.Interpreter
	alerts        *telemetry.AlertGenerator
	writer        TelemetryWriter
	alertWriter   AlertWriter
	commandWriter CommandWriter
	now           func() time.Time
	rand          *rand.Rand
	newTicker     func(time.Duration) Ticker
	inbox         chan request
	done          chan struct{}
	log           *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithTicker overrides the ticker factory used by the scheduler.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(s *Simulator) { s.newTicker = fn }
}

// WithRand sets the random source for alert selection and probability.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rand = r }
}

// WithCommandWriter records every interpreted command.
func WithCommandWriter(w CommandWriter) Option {
	return func(s *Simulator) { s.commandWriter = w }
}

// NewSimulator builds a simulator for deviceID. Status rows go to writer and
// alerts to alertWriter; both are additionally published on bus when it is
// non-nil. Either writer may be nil.
func NewSimulator(deviceID string, cfg *config.Config, bus transport.Bus, writer TelemetryWriter, alertWriter AlertWriter, opts ...Option) *Simulator {
	s := &Simulator{
		deviceID:  deviceID,
		cfg:       cfg,
		bus:       bus,
		store:     device.NewStore(device.StateFromConfig(cfg.Device)),
		now:       time.Now,
		newTicker: newTimeTicker,
		inbox:     make(chan request, inboxSize),
		done:      make(chan struct{}),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	s.interp = device.NewInterpreter(s.store, device.WithClock(s.now))
	s.alerts = telemetry.NewAlertGenerator(s.rand, s.now)
	s.stats.DeviceID = deviceID

	var tws []TelemetryWriter
	var aws []AlertWriter
	if bus != nil {
		bw := NewBusWriter(bus, cfg.Broker.Topics)
		tws = append(tws, bw)
		aws = append(aws, bw)
	}
	if writer != nil {
		tws = append(tws, writer)
	}
	if alertWriter != nil {
		aws = append(aws, alertWriter)
	}
	mw := NewMultiWriter(tws, aws, nil)
	s.writer = mw
	s.alertWriter = mw
	return s
}

// Run connects the bus, then dispatches commands and emits telemetry until ctx
// is cancelled. A failed broker connection is logged; the scheduler and local
// command sources keep running without it.
func (s *Simulator) Run(ctx context.Context) error {
	s.log = logging.FromContext(ctx)

	interval := s.cfg.Telemetry.Interval
	s.log.Info("starting simulator", "device_id", s.deviceID, "tick_interval", interval)

	if s.bus != nil {
		if err := s.connect(ctx); err != nil {
			s.log.Error("broker unavailable, continuing without mqtt", "broker", s.cfg.Broker.URL(), "err", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()
	go func() {
		defer wg.Done()
		s.schedule(ctx, interval)
	}()
	wg.Wait()

	// Release delivery goroutines parked on a full inbox before the bus
	// disconnect waits for them.
	close(s.done)
	if s.bus != nil {
		s.bus.Disconnect()
	}
	s.log.Info("simulator stopped", "device_id", s.deviceID)
	return nil
}

func (s *Simulator) connect(ctx context.Context) error {
	if err := s.bus.Connect(ctx); err != nil {
		return err
	}
	topics := s.cfg.Broker.Topics
	if err := s.bus.Subscribe(topics.Commands, s.onMessage); err != nil {
		return err
	}
	s.setConnected(true)
	if err := s.bus.Publish(topics.Responses, []byte(device.ConnectedNotice().String())); err != nil {
		s.log.Warn("connected notice failed", "err", err)
	}
	return nil
}

// onMessage runs on the transport's delivery goroutine. Commands are queued
// in arrival order; the reply goes out on the responses topic.
func (s *Simulator) onMessage(_ string, payload []byte) {
	req := request{raw: string(payload), source: telemetry.SourceMQTT}
	select {
	case s.inbox <- req:
	case <-s.done:
	}
}

// Execute queues raw for interpretation and waits for the response.
func (s *Simulator) Execute(ctx context.Context, raw, source string) (device.Response, error) {
	req := request{raw: raw, source: source, reply: make(chan device.Response, 1)}
	select {
	case s.inbox <- req:
	case <-ctx.Done():
		return device.Response{}, ctx.Err()
	case <-s.done:
		return device.Response{}, ErrStopped
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return device.Response{}, ctx.Err()
	case <-s.done:
		return device.Response{}, ErrStopped
	}
}

func (s *Simulator) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.inbox:
			s.handle(req)
		}
	}
}

func (s *Simulator) handle(req request) {
	resp := s.interp.Interpret(req.raw)
	s.mu.Lock()
	s.stats.Commands++
	if resp.IsError() {
		s.stats.Errors++
	}
	s.mu.Unlock()
	s.log.Debug("command handled", "source", req.source, "command", req.raw, "response", resp.String())

	if s.bus != nil && s.bus.Connected() {
		if err := s.bus.Publish(s.cfg.Broker.Topics.Responses, []byte(resp.String())); err != nil {
			s.log.Warn("response publish failed", "err", err)
		}
	}
	if s.commandWriter != nil {
		row := telemetry.CommandRow{
			DeviceID:  s.deviceID,
			Source:    req.source,
			Command:   req.raw,
			Response:  resp.String(),
			Timestamp: s.now().UTC(),
		}
		if err := s.commandWriter.WriteCommand(row); err != nil {
			s.log.Warn("command write failed", "err", err)
		}
	}
	if req.reply != nil {
		req.reply <- resp
	}
}

func (s *Simulator) schedule(ctx context.Context, interval time.Duration) {
	ticker := s.newTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			s.tick()
		}
	}
}

// tick writes one status row and, on every alert_every-th tick, maybe an alert.
func (s *Simulator) tick() {
	now := s.now().UTC()
	s.mu.Lock()
	s.stats.Ticks++
	n := s.stats.Ticks
	s.stats.LastStatus = now
	s.mu.Unlock()

	row := telemetry.StatusRow{DeviceID: s.deviceID, Tick: n, State: s.store.Snapshot(), Timestamp: now}
	s.logWriteErr("status write failed", s.writer.Write(row))

	every := int64(s.cfg.Telemetry.AlertEvery)
	if every <= 0 || n%every != 0 {
		return
	}
	if s.rand.Float64() >= s.cfg.Telemetry.AlertProbability {
		return
	}
	alert := s.alerts.Next()
	s.mu.Lock()
	s.stats.Alerts++
	s.mu.Unlock()
	s.log.Info("alert raised", "type", alert.Type, "level", alert.Level, "location", alert.Location)
	s.logWriteErr("alert write failed", s.alertWriter.WriteAlert(telemetry.AlertRow{DeviceID: s.deviceID, Alert: alert}))
}

func (s *Simulator) logWriteErr(msg string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, transport.ErrNotConnected) {
		s.log.Debug(msg, "err", err)
		return
	}
	s.log.Warn(msg, "err", err)
}

func (s *Simulator) setConnected(v bool) {
	s.mu.Lock()
	s.stats.Connected = v
	s.mu.Unlock()
}

// Snapshot returns the current device state.
func (s *Simulator) Snapshot() device.State {
	return s.store.Snapshot()
}

// Stats returns a copy of the running counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if s.bus != nil {
		st.Connected = st.Connected && s.bus.Connected()
	}
	return st
}

// GetConfig returns the configuration the simulator was built with.
func (s *Simulator) GetConfig() *config.Config { return s.cfg }
