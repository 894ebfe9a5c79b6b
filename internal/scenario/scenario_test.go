package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

type interpExecutor struct {
	mu      sync.Mutex
	in      *device.Interpreter
	sources []string
}

func newInterpExecutor() *interpExecutor {
	return &interpExecutor{in: device.NewInterpreter(device.NewStore(device.InitialState()))}
}

func (e *interpExecutor) Execute(_ context.Context, raw, source string) (device.Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, source)
	return e.in.Interpret(raw), nil
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" {
		t.Fatalf("unexpected name %s", sc.Name)
	}
	if sc.Description != "basic test scenario" {
		t.Fatalf("unexpected description %s", sc.Description)
	}
	if len(sc.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(sc.Steps))
	}
	if sc.Steps[1].After != 250*time.Millisecond || sc.Steps[1].Command != "CAMERA:rear:online" {
		t.Fatalf("unexpected step %+v", sc.Steps[1])
	}
	if sc.Duration() != 1250*time.Millisecond {
		t.Fatalf("duration = %s", sc.Duration())
	}
}

func TestLoadRejectsBadSteps(t *testing.T) {
	_, err := Load("testdata/broken.yaml")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, device.ErrUnknownCommand) || !errors.Is(err, device.ErrMalformedCommand) {
		t.Fatalf("expected both parse errors joined, got %v", err)
	}
	if _, err := Load("testdata/missing.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestBuiltInScripts(t *testing.T) {
	scripts := BuiltIn()
	names := Names()
	want := []string{"camera-outage", "identity-check", "sweep"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names = %v, want %v", names, want)
		}
		sc := scripts[n]
		if sc.Description == "" {
			t.Fatalf("script %s missing description", n)
		}
		if err := sc.Validate(); err != nil {
			t.Fatalf("script %s: %v", n, err)
		}
	}
}

func TestSweepReturnsHome(t *testing.T) {
	sc := BuiltIn()["sweep"]
	for i := range sc.Steps {
		sc.Steps[i].After = 0
	}
	exec := newInterpExecutor()
	results, err := Play(context.Background(), &sc, exec)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(results) != len(sc.Steps) {
		t.Fatalf("expected %d results, got %d", len(sc.Steps), len(results))
	}
	for _, r := range results {
		if r.Response.IsError() {
			t.Fatalf("step %s failed: %s", r.Step.Command, r.Response)
		}
	}
	if got := results[0].Response.String(); got != "SUCCESS:X axis adjusted by 30°, current angle: 30°" {
		t.Fatalf("first response = %s", got)
	}
	if st := exec.in.Store().Snapshot(); st.SpeakerAngle != (device.Angle{}) {
		t.Fatalf("angle after sweep = %+v", st.SpeakerAngle)
	}
	for _, src := range exec.sources {
		if src != telemetry.SourceScenario {
			t.Fatalf("source = %s", src)
		}
	}
}

func TestIdentityCheckResponses(t *testing.T) {
	sc := BuiltIn()["identity-check"]
	for i := range sc.Steps {
		sc.Steps[i].After = 0
	}
	results, err := Play(context.Background(), &sc, newInterpExecutor())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	want := []string{
		"IDENTITY:张三,employee,engineering manager",
		"IDENTITY:李四,visitor,VIP customer",
		"IDENTITY:unknown person,stranger,needs attention",
	}
	for i, w := range want {
		if got := results[i].Response.String(); got != w {
			t.Fatalf("step %d = %s, want %s", i, got, w)
		}
	}
}

func TestPlayCancelledBetweenSteps(t *testing.T) {
	sc := &Script{Steps: []Step{
		{Command: "X:1"},
		{After: time.Hour, Command: "X:1"},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	exec := newInterpExecutor()
	results, err := Play(ctx, sc, exec)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one step before cancel, got %d", len(results))
	}
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, string, string) (device.Response, error) {
	return device.Response{}, errors.New("stopped")
}

func TestPlayPropagatesExecutorError(t *testing.T) {
	sc := &Script{Steps: []Step{{Command: "RESET:"}}}
	if _, err := Play(context.Background(), sc, failingExecutor{}); err == nil {
		t.Fatalf("expected executor error")
	}
}

func TestResolve(t *testing.T) {
	sc, err := Resolve("camera-outage")
	if err != nil || sc.Name != "camera-outage" {
		t.Fatalf("Resolve builtin = %+v, %v", sc, err)
	}
	sc, err = Resolve("testdata/simple.yaml")
	if err != nil || sc.Name != "example" {
		t.Fatalf("Resolve file = %+v, %v", sc, err)
	}
}
