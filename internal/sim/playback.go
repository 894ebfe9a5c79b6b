package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"sounder-sim/internal/telemetry"
)

// ReplayLog replays status rows from r to writer. A speed >0 scales the
// recorded spacing; if speed <= 0, no artificial delay is inserted.
// Cancelling ctx stops the replay between rows.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row telemetry.StatusRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := row.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				t := time.NewTimer(diff)
				select {
				case <-ctx.Done():
					t.Stop()
					return n, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := writer.Write(row); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its status rows.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
