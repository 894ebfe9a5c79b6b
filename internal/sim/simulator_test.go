package sim

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/logging"
	"sounder-sim/internal/telemetry"
	"sounder-sim/internal/transport"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeTicker() *fakeTicker { return &fakeTicker{ch: make(chan time.Time)} }

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type recordingWriter struct {
	mu       sync.Mutex
	rows     []telemetry.StatusRow
	alerts   []telemetry.AlertRow
	commands []telemetry.CommandRow
	statusCh chan telemetry.StatusRow
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{statusCh: make(chan telemetry.StatusRow, 16)}
}

func (r *recordingWriter) Write(row telemetry.StatusRow) error {
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
	r.statusCh <- row
	return nil
}

func (r *recordingWriter) WriteAlert(row telemetry.AlertRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, row)
	return nil
}

func (r *recordingWriter) WriteCommand(row telemetry.CommandRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, row)
	return nil
}

func testConfig(prob float64) *config.Config {
	cfg := config.Default()
	cfg.Telemetry.AlertProbability = prob
	return cfg
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestTickCadence(t *testing.T) {
	tests := []struct {
		name       string
		prob       float64
		ticks      int
		wantAlerts int
	}{
		{"always", 1, 9, 3},
		{"never", 0, 9, 0},
		{"short window", 1, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newRecordingWriter()
			s := NewSimulator("d1", testConfig(tt.prob), nil, w, w,
				WithClock(fixedClock), WithRand(rand.New(rand.NewSource(1))))
			s.log = logging.Discard()
			for i := 0; i < tt.ticks; i++ {
				s.tick()
			}
			if len(w.rows) != tt.ticks {
				t.Fatalf("expected %d status rows, got %d", tt.ticks, len(w.rows))
			}
			for i, r := range w.rows {
				if r.Tick != int64(i+1) || r.DeviceID != "d1" {
					t.Fatalf("row %d = %+v", i, r)
				}
			}
			if len(w.alerts) != tt.wantAlerts {
				t.Fatalf("expected %d alerts, got %d", tt.wantAlerts, len(w.alerts))
			}
			if st := s.Stats(); st.Ticks != int64(tt.ticks) || st.Alerts != int64(tt.wantAlerts) {
				t.Fatalf("stats = %+v", st)
			}
		})
	}
}

func TestAlertsOnlyOnThirdTick(t *testing.T) {
	w := newRecordingWriter()
	bus := transport.NewMemoryBus()
	if err := bus.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg := testConfig(1)
	s := NewSimulator("d1", cfg, bus, w, w, WithClock(fixedClock))
	s.log = logging.Discard()
	for i := 1; i <= 6; i++ {
		s.tick()
		alerts := len(bus.Messages(cfg.Broker.Topics.Alerts))
		if want := i / 3; alerts != want {
			t.Fatalf("after tick %d: %d alerts, want %d", i, alerts, want)
		}
		if got := len(bus.Messages(cfg.Broker.Topics.Status)); got != i {
			t.Fatalf("after tick %d: %d status messages", i, got)
		}
	}
	for _, m := range bus.Messages(cfg.Broker.Topics.Alerts) {
		a, err := telemetry.ParseAlertMessage(m)
		if err != nil {
			t.Fatalf("alert wire form %q: %v", m, err)
		}
		if !a.Timestamp.Equal(fixedClock()) {
			t.Fatalf("alert timestamp = %v", a.Timestamp)
		}
	}
}

func startSimulator(t *testing.T, s *Simulator) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logging.Discard()))
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return cancel, errc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunDispatchesBusCommands(t *testing.T) {
	bus := transport.NewMemoryBus()
	cfg := testConfig(0)
	topics := cfg.Broker.Topics
	ft := newFakeTicker()
	w := newRecordingWriter()
	s := NewSimulator("d1", cfg, bus, w, w,
		WithClock(fixedClock),
		WithTicker(func(time.Duration) Ticker { return ft }),
		WithCommandWriter(w))

	cancel, errc := startSimulator(t, s)
	waitFor(t, "connected notice", func() bool { return len(bus.Messages(topics.Responses)) > 0 })
	if got := bus.Messages(topics.Responses)[0]; got != device.ConnectedNotice().String() {
		t.Fatalf("first response = %q", got)
	}

	if err := bus.Publish(topics.Commands, []byte("X:15")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	resp, err := s.Execute(context.Background(), "STATUS:", telemetry.SourceAdmin)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	st, err := device.ParseState([]byte(resp.Message))
	if err != nil || st.SpeakerAngle.X != 15 {
		t.Fatalf("status after bus command = %+v (%v)", st, err)
	}
	responses := bus.Messages(topics.Responses)
	if len(responses) != 3 || responses[1] != "SUCCESS:X axis adjusted by 15°, current angle: 15°" {
		t.Fatalf("responses = %q", responses)
	}
	if !strings.HasPrefix(responses[2], "STATUS:") {
		t.Fatalf("status response not published: %q", responses[2])
	}

	ft.ch <- fixedClock()
	select {
	case row := <-w.statusCh:
		if row.Tick != 1 || row.State.SpeakerAngle.X != 15 {
			t.Fatalf("status row = %+v", row)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no status row after tick")
	}
	waitFor(t, "status publish", func() bool { return len(bus.Messages(topics.Status)) == 1 })

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ft.isStopped() {
		t.Fatalf("ticker not stopped")
	}
	if bus.Connected() {
		t.Fatalf("bus still connected after stop")
	}
	if _, err := s.Execute(context.Background(), "RESET:", telemetry.SourceAdmin); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.commands) != 2 || w.commands[0].Source != telemetry.SourceMQTT || w.commands[1].Source != telemetry.SourceAdmin {
		t.Fatalf("command rows = %+v", w.commands)
	}
	if st := s.Stats(); st.Commands != 2 || st.Errors != 0 || st.Ticks != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

// quiescingBus makes Disconnect wait for handlers that are still running,
// the way the paho router is drained on disconnect.
type quiescingBus struct {
	*transport.MemoryBus
	inflight atomic.Int32
}

func (b *quiescingBus) Subscribe(topic string, h transport.Handler) error {
	return b.MemoryBus.Subscribe(topic, func(t string, p []byte) {
		b.inflight.Add(1)
		defer b.inflight.Add(-1)
		h(t, p)
	})
}

func (b *quiescingBus) Disconnect() {
	for b.inflight.Load() > 0 {
		time.Sleep(time.Millisecond)
	}
	b.MemoryBus.Disconnect()
}

type gatedCommandWriter struct {
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedCommandWriter) WriteCommand(telemetry.CommandRow) error {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return nil
}

func TestRunReturnsWithFullInbox(t *testing.T) {
	bus := &quiescingBus{MemoryBus: transport.NewMemoryBus()}
	cfg := testConfig(0)
	topics := cfg.Broker.Topics
	ft := newFakeTicker()
	cw := &gatedCommandWriter{entered: make(chan struct{}), gate: make(chan struct{})}
	s := NewSimulator("d1", cfg, bus, nil, nil,
		WithTicker(func(time.Duration) Ticker { return ft }),
		WithCommandWriter(cw))

	cancel, errc := startSimulator(t, s)
	waitFor(t, "connected notice", func() bool { return len(bus.Messages(topics.Responses)) > 0 })

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < inboxSize+6; i++ {
			_ = bus.Publish(topics.Commands, []byte("X:1"))
		}
	}()
	select {
	case <-cw.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch never reached the command writer")
	}
	waitFor(t, "full inbox", func() bool { return len(s.inbox) == cap(s.inbox) })

	cancel()
	close(cw.gate)
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel with a full inbox")
	}
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery goroutine still blocked after stop")
	}
	if bus.Connected() {
		t.Fatalf("bus still connected after stop")
	}
}

func TestRunSurvivesConnectFailure(t *testing.T) {
	bus := transport.NewMemoryBus()
	bus.ConnectErr = errors.New("connection refused")
	ft := newFakeTicker()
	w := newRecordingWriter()
	s := NewSimulator("d1", testConfig(0), bus, w, w,
		WithTicker(func(time.Duration) Ticker { return ft }))

	cancel, errc := startSimulator(t, s)
	defer func() {
		cancel()
		<-errc
	}()

	resp, err := s.Execute(context.Background(), "CAMERA:rear:online", telemetry.SourceConsole)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.String() != "SUCCESS:camera rear set to online" {
		t.Fatalf("response = %s", resp)
	}
	if s.Snapshot().Cameras["rear"] != device.CameraOnline {
		t.Fatalf("state not updated")
	}

	ft.ch <- fixedClock()
	select {
	case <-w.statusCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler not running without broker")
	}
	if s.Stats().Connected {
		t.Fatalf("stats report connected after failed connect")
	}
}

func TestExecuteHonoursContext(t *testing.T) {
	s := NewSimulator("d1", testConfig(0), nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Execute(ctx, "STATUS:", telemetry.SourceAdmin); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
