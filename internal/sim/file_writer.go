package sim

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"sounder-sim/internal/telemetry"
)

// FileWriter writes status, alert and command rows to JSONL files.
type FileWriter struct {
	mu        sync.Mutex
	teleFile  *os.File
	alertFile *os.File
	cmdFile   *os.File
	teleEnc   *json.Encoder
	alertEnc  *json.Encoder
	cmdEnc    *json.Encoder
}

// NewFileWriter creates a FileWriter. alertPath or commandPath may be empty to skip those logs.
func NewFileWriter(statusPath, alertPath, commandPath string) (*FileWriter, error) {
	tf, err := os.Create(statusPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{teleFile: tf, teleEnc: json.NewEncoder(tf)}
	if alertPath != "" {
		af, err := os.Create(alertPath)
		if err != nil {
			fw.Close()
			return nil, err
		}
		fw.alertFile = af
		fw.alertEnc = json.NewEncoder(af)
	}
	if commandPath != "" {
		cf, err := os.Create(commandPath)
		if err != nil {
			fw.Close()
			return nil, err
		}
		fw.cmdFile = cf
		fw.cmdEnc = json.NewEncoder(cf)
	}
	return fw, nil
}

// Write logs a single status row.
func (f *FileWriter) Write(row telemetry.StatusRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teleEnc.Encode(row)
}

// WriteBatch logs multiple status rows.
func (f *FileWriter) WriteBatch(rows []telemetry.StatusRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlert logs an alert row, if enabled.
func (f *FileWriter) WriteAlert(row telemetry.AlertRow) error {
	if f.alertEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alertEnc.Encode(row)
}

// WriteCommand logs a command row, if enabled.
func (f *FileWriter) WriteCommand(row telemetry.CommandRow) error {
	if f.cmdEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var errs []error
	for _, file := range []*os.File{f.teleFile, f.alertFile, f.cmdFile} {
		if file != nil {
			errs = append(errs, file.Close())
		}
	}
	return errors.Join(errs...)
}
