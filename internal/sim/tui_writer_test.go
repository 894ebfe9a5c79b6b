package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	row := telemetry.StatusRow{DeviceID: "d1", Tick: 2, State: device.InitialState(), Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(row); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[1].(statusMsg); !ok {
		t.Fatalf("expected statusMsg, got %T", p.msgs[1])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[2].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[2])
	}
	if err := w.WriteAlert(telemetry.AlertRow{DeviceID: "d1", Alert: telemetry.Catalog[2]}); err != nil {
		t.Fatalf("alert: %v", err)
	}
	if _, ok := p.msgs[3].(alertMsg); !ok {
		t.Fatalf("expected alertMsg, got %T", p.msgs[3])
	}
	cmd := telemetry.CommandRow{DeviceID: "d1", Source: telemetry.SourceConsole, Command: "X:1", Response: "SUCCESS:ok"}
	if err := w.WriteCommand(cmd); err != nil {
		t.Fatalf("command: %v", err)
	}
	lm, ok := p.msgs[4].(logMsg)
	if !ok || !strings.Contains(lm.line, "X:1") || !strings.Contains(lm.line, "SUCCESS:ok") {
		t.Fatalf("unexpected command line %#v", p.msgs[4])
	}
	w.SetSubmitter(func(string) {})
	if _, ok := p.msgs[5].(setSubmitMsg); !ok {
		t.Fatalf("expected setSubmitMsg, got %T", p.msgs[5])
	}
}

func TestStatusUpdatesTable(t *testing.T) {
	m := newTUIModel(config.Default())
	st := device.InitialState()
	st.SpeakerAngle.X = 12.5
	st.Cameras["rear"] = device.CameraOnline
	mi, _ := m.Update(statusMsg{telemetry.StatusRow{DeviceID: "d1", Tick: 7, State: st, Timestamp: time.Unix(0, 0)}})
	m = mi.(tuiModel)
	rows := m.table.Rows()
	if rows[1][1] != "7" || rows[2][1] != "12.5°" {
		t.Fatalf("unexpected device rows %v", rows)
	}
	var rear string
	for _, r := range rows {
		if r[2] == "rear" {
			rear = r[3]
		}
	}
	if rear != "online" {
		t.Fatalf("rear camera = %q", rear)
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 40})
	m = mi.(tuiModel)
	long := "one two three four five six"
	mi, _ = m.Update(logMsg{line: long})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	m.vp.Height = 1
	m.vp.Width = 20
	mi, _ := m.Update(logMsg{line: "l1"})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "l2"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = mi.(tuiModel)
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
}

func TestCommandInputSubmits(t *testing.T) {
	got := make(chan string, 1)
	m := newTUIModel(config.Default())
	mi, _ := m.Update(setSubmitMsg{fn: func(raw string) { got <- raw }})
	m = mi.(tuiModel)
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = mi.(tuiModel)
	if !m.inputDialog {
		t.Fatalf("command dialog not opened")
	}
	m.input.SetValue(" CAMERA:rear:online ")
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mi.(tuiModel)
	if m.inputDialog {
		t.Fatalf("dialog should close on enter")
	}
	select {
	case raw := <-got:
		if raw != "CAMERA:rear:online" {
			t.Fatalf("submitted %q", raw)
		}
	case <-time.After(time.Second):
		t.Fatalf("command not submitted")
	}
	if len(m.history) != 1 {
		t.Fatalf("history = %v", m.history)
	}
}
