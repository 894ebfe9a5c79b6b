package main

import (
	"io"
	"os"

	"golang.org/x/term"

	"sounder-sim/internal/config"
	"sounder-sim/internal/sim"
)

// isTerminal reports whether STDOUT is attached to a terminal.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

type writerOptions struct {
	printOnly bool
	logFile   string
	tui       bool
}

func (o writerOptions) useTUI() bool { return o.tui && isTerminal() }

// newWriters sets up status, alert and command writers based on flags and
// config. It returns them combined and a cleanup function closing every sink.
func newWriters(cfg *config.Config, opts writerOptions) (*sim.MultiWriter, func(), error) {
	sinks, err := sinkWriters(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	var (
		tws []sim.TelemetryWriter
		aws []sim.AlertWriter
		cws []sim.CommandWriter
	)
	for _, w := range sinks {
		if tw, ok := w.(sim.TelemetryWriter); ok {
			tws = append(tws, tw)
		}
		if aw, ok := w.(sim.AlertWriter); ok {
			aws = append(aws, aw)
		}
		if cw, ok := w.(sim.CommandWriter); ok {
			cws = append(cws, cw)
		}
	}
	return sim.NewMultiWriter(tws, aws, cws), func() { closeAll(sinks) }, nil
}

// sinkWriters chooses the underlying writers. The console is the TUI when
// requested on a terminal, otherwise STDOUT unless rows go to GreptimeDB.
// Kafka and the JSONL log file are added on top.
func sinkWriters(cfg *config.Config, opts writerOptions) ([]any, error) {
	var sinks []any
	greptime := cfg.Sinks.Greptime.Endpoint != "" && !opts.printOnly

	switch {
	case opts.useTUI():
		sinks = append(sinks, sim.NewTUIWriter(cfg))
	case opts.printOnly || !greptime:
		sinks = append(sinks, sim.NewStdoutWriter(cfg, !opts.printOnly && isTerminal()))
	}
	if greptime {
		gw, err := sim.NewGreptimeDBWriter(cfg.Sinks.Greptime)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, gw)
	}
	if len(cfg.Sinks.Kafka.Brokers) > 0 && !opts.printOnly {
		sinks = append(sinks, sim.NewKafkaWriter(cfg.Sinks.Kafka))
	}
	if opts.logFile != "" {
		fw, err := sim.NewFileWriter(opts.logFile, opts.logFile+".alerts", opts.logFile+".commands")
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		sinks = append(sinks, fw)
	}
	return sinks, nil
}

// newTelemetryWriter creates a status-only writer for replay.
func newTelemetryWriter(cfg *config.Config, printOnly bool) (sim.TelemetryWriter, func(), error) {
	return newWriters(cfg, writerOptions{printOnly: printOnly})
}

func closeAll(sinks []any) {
	for i := len(sinks) - 1; i >= 0; i-- {
		if c, ok := sinks[i].(io.Closer); ok {
			_ = c.Close()
		}
	}
}
