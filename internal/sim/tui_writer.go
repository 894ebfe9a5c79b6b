package sim

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// alertMsg carries an alert log line.
type alertMsg struct{ line string }

// statusMsg carries the latest status row for the state table.
type statusMsg struct{ telemetry.StatusRow }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type setSubmitMsg struct{ fn func(string) }

const (
	maxLogLines         = 1000
	maxSectionHeightPct = 0.2
)

// TUIWriter renders device telemetry and command traffic using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.Config) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.StatusRow) error {
	st := row.State
	line := fmt.Sprintf("%s %sSTATUS%s %stick=%d%s %sangle=(%s,%s)%s %scameras=%d/%d online%s",
		stamp(row.Timestamp), colorBlue, colorReset,
		colorGray, row.Tick, colorReset,
		colorMagenta, fmtDeg(st.SpeakerAngle.X), fmtDeg(st.SpeakerAngle.Y), colorReset,
		colorGreen, onlineCount(st), len(st.Cameras), colorReset)
	w.program.Send(logMsg{line: line})
	w.program.Send(statusMsg{row})
	return nil
}

// WriteBatch outputs multiple status rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.StatusRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteAlert implements AlertWriter.
func (w *TUIWriter) WriteAlert(row telemetry.AlertRow) error {
	a := row.Alert
	line := fmt.Sprintf("%s %sALERT%s %s %s%s%s @ %s",
		stamp(a.Timestamp), colorRed, colorReset, a.Type,
		levelColor(a.Level), a.Level, colorReset, a.Location)
	w.program.Send(alertMsg{line: line})
	return nil
}

// WriteCommand implements CommandWriter.
func (w *TUIWriter) WriteCommand(row telemetry.CommandRow) error {
	respColor := colorGreen
	if strings.HasPrefix(row.Response, string(device.KindError)+":") {
		respColor = colorRed
	}
	line := fmt.Sprintf("%s %sCMD%s [%s] %s%s%s -> %s%s%s",
		stamp(row.Timestamp), colorYellow, colorReset, row.Source,
		colorCyan, row.Command, colorReset,
		respColor, row.Response, colorReset)
	w.program.Send(logMsg{line: line})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetSubmitter registers the callback that executes commands typed into the console.
func (w *TUIWriter) SetSubmitter(fn func(string)) {
	w.program.Send(setSubmitMsg{fn: fn})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

func fmtDeg(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "°" }

func onlineCount(st device.State) int {
	n := 0
	for _, s := range st.Cameras {
		if s == device.CameraOnline {
			n++
		}
	}
	return n
}

type tuiModel struct {
	cfg          *config.Config
	table        table.Model
	vp           viewport.Model
	alertVP      viewport.Model
	logs         []string
	alertLogs    []string
	status       telemetry.StatusRow
	haveStatus   bool
	admin        bool
	wrap         bool
	autoscroll   bool
	showChannels bool
	help         bool
	header       string
	headerHeight int
	height       int
	input        textinput.Model
	inputDialog  bool
	submit       func(string)
	history      []string
}

func newTUIModel(cfg *config.Config) tuiModel {
	cols := []table.Column{
		{Title: "Device", Width: 14},
		{Title: "Value", Width: 12},
		{Title: "Camera", Width: 10},
		{Title: "Status", Width: 10},
	}
	st := device.StateFromConfig(cfg.Device)
	rows := stateRows(cfg.Device.ID, 0, st)
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		cfg:          cfg,
		table:        t,
		vp:           viewport.New(0, 0),
		alertVP:      viewport.New(0, 0),
		autoscroll:   true,
		showChannels: true,
	}
}

// stateRows lays the device fields out in the left columns and the cameras
// in the right columns.
func stateRows(id string, tick int64, st device.State) []table.Row {
	left := [][2]string{
		{"ID", id},
		{"Tick", strconv.FormatInt(tick, 10)},
		{"Angle X", fmtDeg(st.SpeakerAngle.X)},
		{"Angle Y", fmtDeg(st.SpeakerAngle.Y)},
		{"Targets", strconv.Itoa(st.TargetCount)},
		{"Danger", st.DangerLevel},
	}
	ids := st.CameraIDs()
	n := len(left)
	if len(ids) > n {
		n = len(ids)
	}
	rows := make([]table.Row, n)
	for i := range rows {
		row := table.Row{"", "", "", ""}
		if i < len(left) {
			row[0], row[1] = left[i][0], left[i][1]
		}
		if i < len(ids) {
			row[2], row[3] = ids[i], string(st.Cameras[ids[i]])
		}
		rows[i] = row
	}
	return rows
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tableWidth := msg.Width
		if m.showChannels {
			tableWidth = msg.Width / 2
		}
		m.table.SetWidth(tableWidth)
		m.vp.Width = msg.Width
		m.alertVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshAlerts()
	case tea.KeyMsg:
		if m.inputDialog {
			switch msg.Type {
			case tea.KeyEnter:
				raw := strings.TrimSpace(m.input.Value())
				if raw != "" {
					if m.submit != nil {
						go m.submit(raw)
					}
					m.history = append(m.history, raw)
				}
				m.inputDialog = false
				m.updateViewportHeight()
			case tea.KeyEsc:
				m.inputDialog = false
				m.updateViewportHeight()
			case tea.KeyUp:
				if len(m.history) > 0 {
					m.input.SetValue(m.history[len(m.history)-1])
					m.input.CursorEnd()
				}
			default:
				var cmd tea.Cmd
				m.input, cmd = m.input.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.alertVP.GotoBottom()
			}
			return m, nil
		case "c", ":":
			m.input = textinput.New()
			m.input.Placeholder = "X:15 | Y:-5 | I:<id> | TEST:<data> | STATUS: | RESET: | CAMERA:<id>:<state>"
			m.input.Focus()
			m.inputDialog = true
			m.updateViewportHeight()
			return m, nil
		case "p":
			m.showChannels = !m.showChannels
			width := m.vp.Width
			if m.showChannels {
				m.table.SetWidth(width / 2)
			} else {
				m.table.SetWidth(width)
			}
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "h", "?":
			m.help = !m.help
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		return m, nil
	case logMsg:
		m.logs = appendBounded(m.logs, msg.line)
		m.refreshViewport()
	case alertMsg:
		m.alertLogs = appendBounded(m.alertLogs, msg.line)
		m.updateViewportHeight()
		m.refreshAlerts()
		m.refreshViewport()
	case statusMsg:
		m.status = msg.StatusRow
		m.haveStatus = true
		m.table.SetRows(stateRows(msg.DeviceID, msg.Tick, msg.State))
		m.header = m.renderHeader()
	case adminMsg:
		m.admin = msg.active
	case setSubmitMsg:
		m.submit = msg.fn
	}
	return m, nil
}

func appendBounded(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return lines
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())

	alertLines := len(m.alertLogs)
	if alertLines == 0 {
		alertLines = 1
	}
	if limit := m.maxSectionLines(); alertLines > limit {
		alertLines = limit
	}
	m.alertVP.Height = alertLines

	inputHeight := 0
	if m.inputDialog {
		inputHeight = 2
	}
	h := m.height - m.headerHeight - bottomHeight - (1 + m.alertVP.Height) - inputHeight - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.alertVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshAlerts() {
	content := "none"
	if len(m.alertLogs) > 0 {
		content = strings.Join(m.alertLogs, "\n")
	}
	m.alertVP.SetContent(content)
	if m.autoscroll {
		m.alertVP.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.header,
		divider,
		m.vp.View(),
		divider,
		"Alerts:",
		m.alertVP.View(),
	}
	if m.inputDialog {
		sections = append(sections, divider, "Command:\n"+m.input.View())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	tableView := m.table.View()
	if !m.showChannels {
		return tableView
	}
	width := m.vp.Width/2 - 1
	channels := renderChannelTree(m.cfg, m.wrap, width)
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, sep, channels)
}

func renderChannelTree(cfg *config.Config, wrap bool, width int) string {
	var b strings.Builder
	b.WriteString("Video Channels\n")
	chs := cfg.Stream.Channels
	for i, ch := range chs {
		prefix := "├─"
		if i == len(chs)-1 {
			prefix = "└─"
		}
		line := fmt.Sprintf("%s %s%s%s :%d %s - %s", prefix, colorBlue, ch.ID, colorReset, ch.Port, ch.Name, ch.Location)
		if wrap && width > 0 {
			line = wordwrap.String(line, width)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	last := "never"
	if m.haveStatus {
		last = m.status.Timestamp.Format(time.TimeOnly)
	}
	state := fmt.Sprintf("%sDEVICE%s %s%s%s %slast_status=%s%s %salerts=%d%s",
		colorBlue, colorReset,
		colorCyan, m.cfg.Device.ID, colorReset,
		colorGray, last, colorReset,
		colorRed, len(m.alertLogs), colorReset)
	return fmt.Sprintf("%s | Admin UI %s | Wrap %s | Scroll %s | Channels %s | c: command  h: help",
		state, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.showChannels))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q    quit",
		" c/:  enter a device command (enter sends, esc cancels, up recalls last)",
		" w    toggle wrap",
		" s    toggle auto-scroll",
		" p    toggle channel list",
		" h/?  toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
