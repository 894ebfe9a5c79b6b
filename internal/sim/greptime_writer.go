package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

const (
	defaultGreptimePort = 4001
	greptimeTimeout     = 5 * time.Second
)

// greptimeClient is the part of the ingester client used here; tests substitute it.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes status and alert rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client      greptimeClient
	statusTable string
	alertTable  string
}

// NewGreptimeDBWriter connects to the endpoint (host or host:port) in cfg.
func NewGreptimeDBWriter(cfg config.GreptimeConfig) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	gcfg := greptime.NewConfig(host).WithPort(port).WithDatabase(cfg.Database)
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeDBWriter{
		client:      client,
		statusTable: cfg.StatusTable,
		alertTable:  cfg.AlertTable,
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid greptime port %q: %w", portStr, err)
	}
	return host, port, nil
}

// Write inserts a single status row.
func (w *GreptimeDBWriter) Write(row telemetry.StatusRow) error {
	return w.WriteBatch([]telemetry.StatusRow{row})
}

// WriteBatch inserts multiple status rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.StatusRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.statusTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("device_id", types.STRING)
	tbl.AddFieldColumn("tick", types.INT64)
	tbl.AddFieldColumn("angle_x", types.FLOAT64)
	tbl.AddFieldColumn("angle_y", types.FLOAT64)
	tbl.AddFieldColumn("target_count", types.INT64)
	tbl.AddFieldColumn("danger_level", types.STRING)
	tbl.AddFieldColumn("cameras_online", types.INT64)
	tbl.AddFieldColumn("cameras", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		cams, err := json.Marshal(r.State.Cameras)
		if err != nil {
			return err
		}
		if err := tbl.AddRow(
			r.DeviceID,
			r.Tick,
			r.State.SpeakerAngle.X,
			r.State.SpeakerAngle.Y,
			int64(r.State.TargetCount),
			r.State.DangerLevel,
			int64(onlineCameras(r.State)),
			string(cams),
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteAlert inserts an alert row.
func (w *GreptimeDBWriter) WriteAlert(row telemetry.AlertRow) error {
	tbl, err := table.New(w.alertTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("device_id", types.STRING)
	tbl.AddTagColumn("level", types.STRING)
	tbl.AddFieldColumn("type", types.STRING)
	tbl.AddFieldColumn("location", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
	a := row.Alert
	if err := tbl.AddRow(row.DeviceID, string(a.Level), a.Type, a.Location, a.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, 1)
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), greptimeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	slog.Debug("greptime rows written", "rows", n)
	return nil
}

func onlineCameras(st device.State) int {
	n := 0
	for _, s := range st.Cameras {
		if s == device.CameraOnline {
			n++
		}
	}
	return n
}
