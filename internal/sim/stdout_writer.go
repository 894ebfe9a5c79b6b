// Writer implementation printing telemetry to STDOUT
package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// StdoutWriter prints rows to STDOUT, either as JSON lines or as colorized text.
type StdoutWriter struct {
	cfg      *config.Config
	out      io.Writer
	colorize bool
	once     sync.Once
	mu       sync.Mutex
}

// NewStdoutWriter creates a StdoutWriter. cfg is only used for the colorized overview.
func NewStdoutWriter(cfg *config.Config, colorize bool) *StdoutWriter {
	return &StdoutWriter{cfg: cfg, out: os.Stdout, colorize: colorize}
}

func (w *StdoutWriter) printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

func (w *StdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Device Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Device ID:\t%s\n", w.cfg.Device.ID)
	fmt.Fprintf(tw, "Broker:\t%s\n", w.cfg.Broker.URL())
	fmt.Fprintf(tw, "Telemetry Interval:\t%s\n", w.cfg.Telemetry.Interval)
	fmt.Fprintf(tw, "Alert Every:\t%d ticks\n", w.cfg.Telemetry.AlertEvery)
	fmt.Fprintf(tw, "Alert Probability:\t%.2f\n", w.cfg.Telemetry.AlertProbability)
	tw.Flush()

	fmt.Fprintln(w.out, "\nCameras:")
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tStatus\n")
	for _, c := range w.cfg.Device.Cameras {
		fmt.Fprintf(tw, "%s\t%s%s%s\n", c.ID, cameraColor(device.CameraStatus(c.Status)), c.Status, colorReset)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func cameraColor(s device.CameraStatus) string {
	switch s {
	case device.CameraOnline:
		return colorGreen
	case device.CameraOffline:
		return colorRed
	}
	return colorYellow
}

func levelColor(l telemetry.Level) string {
	switch l {
	case telemetry.LevelHigh:
		return colorRed
	case telemetry.LevelMedium:
		return colorYellow
	}
	return colorCyan
}

func stamp(t time.Time) string {
	return fmt.Sprintf("%s[%s]%s", colorGray, t.Format(time.RFC3339), colorReset)
}

// Write outputs a single status row.
func (w *StdoutWriter) Write(row telemetry.StatusRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		return w.printJSON(row)
	}
	w.once.Do(w.printOverview)

	var cams []string
	for _, id := range row.State.CameraIDs() {
		st := row.State.Cameras[id]
		cams = append(cams, fmt.Sprintf("%s%s=%s%s", cameraColor(st), id, st, colorReset))
	}
	fmt.Fprintf(w.out, "%s %sdevice=%s%s %stick=%d%s %sangle=(%g,%g)%s %stargets=%d%s %sdanger=%s%s %s\n",
		stamp(row.Timestamp),
		colorBlue, row.DeviceID, colorReset,
		colorGray, row.Tick, colorReset,
		colorMagenta, row.State.SpeakerAngle.X, row.State.SpeakerAngle.Y, colorReset,
		colorCyan, row.State.TargetCount, colorReset,
		levelColor(telemetry.Level(row.State.DangerLevel)), row.State.DangerLevel, colorReset,
		strings.Join(cams, " "))
	return nil
}

// WriteBatch outputs multiple status rows.
func (w *StdoutWriter) WriteBatch(rows []telemetry.StatusRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteAlert prints an alert.
func (w *StdoutWriter) WriteAlert(row telemetry.AlertRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		return w.printJSON(row)
	}
	w.once.Do(w.printOverview)
	a := row.Alert
	fmt.Fprintf(w.out, "%s %sALERT%s device=%s type=%q %slevel=%s%s location=%q\n",
		stamp(a.Timestamp), colorRed, colorReset, row.DeviceID, a.Type,
		levelColor(a.Level), a.Level, colorReset, a.Location)
	return nil
}

// WriteCommand prints an interpreted command and its response.
func (w *StdoutWriter) WriteCommand(row telemetry.CommandRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		return w.printJSON(row)
	}
	w.once.Do(w.printOverview)
	respColor := colorGreen
	if strings.HasPrefix(row.Response, string(device.KindError)+":") {
		respColor = colorRed
	}
	fmt.Fprintf(w.out, "%s %sCMD%s source=%s %s%s%s -> %s%s%s\n",
		stamp(row.Timestamp), colorYellow, colorReset, row.Source,
		colorBlue, row.Command, colorReset,
		respColor, row.Response, colorReset)
	return nil
}
