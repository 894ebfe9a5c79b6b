package sim

import (
	"errors"

	"sounder-sim/internal/telemetry"
)

// MultiWriter fan-outs status, alert and command rows to multiple writers.
// Every writer is tried; failures are joined.
type MultiWriter struct {
	telewriters  []TelemetryWriter
	alertwriters []AlertWriter
	cmdwriters   []CommandWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, aws []AlertWriter, cws []CommandWriter) *MultiWriter {
	return &MultiWriter{telewriters: tws, alertwriters: aws, cmdwriters: cws}
}

// Write sends a status row to all writers.
func (mw *MultiWriter) Write(row telemetry.StatusRow) error {
	var errs []error
	for _, w := range mw.telewriters {
		if err := w.Write(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends multiple status rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.StatusRow) error {
	var errs []error
	for _, w := range mw.telewriters {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WriteAlert sends an alert row to all alert writers.
func (mw *MultiWriter) WriteAlert(row telemetry.AlertRow) error {
	var errs []error
	for _, w := range mw.alertwriters {
		if err := w.WriteAlert(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteCommand sends a command row to all command writers.
func (mw *MultiWriter) WriteCommand(row telemetry.CommandRow) error {
	var errs []error
	for _, w := range mw.cmdwriters {
		if err := w.WriteCommand(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type submitterSetter interface {
	SetSubmitter(func(string))
}

type adminStatusSetter interface {
	SetAdminStatus(bool)
}

// SetSubmitter forwards the console command callback to writers that accept one.
func (mw *MultiWriter) SetSubmitter(fn func(string)) {
	for _, w := range mw.telewriters {
		if s, ok := w.(submitterSetter); ok {
			s.SetSubmitter(fn)
		}
	}
}

// SetAdminStatus forwards the admin UI state to writers that display it.
func (mw *MultiWriter) SetAdminStatus(active bool) {
	for _, w := range mw.telewriters {
		if s, ok := w.(adminStatusSetter); ok {
			s.SetAdminStatus(active)
		}
	}
}
