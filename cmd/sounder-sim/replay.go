package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sounder-sim/internal/logging"
	"sounder-sim/internal/sim"
	"sounder-sim/internal/transport"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded status journal",
	Long: "replay feeds status rows from a --log-file journal back onto the broker's status\n" +
		"topic and the configured sinks, or only to STDOUT with --print-only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		if replaySpeed < 0 {
			return fmt.Errorf("speed must not be negative, got %v", replaySpeed)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log := logging.FromContext(ctx)

		writer, cleanup, err := newTelemetryWriter(appCfg, replayPrintOnly)
		if err != nil {
			return err
		}
		defer cleanup()

		if !replayPrintOnly {
			bus := transport.NewMQTTBus(appCfg.Broker, log)
			if err := bus.Connect(ctx); err != nil {
				return fmt.Errorf("connect broker %s: %w", appCfg.Broker.URL(), err)
			}
			defer bus.Disconnect()
			writer = sim.NewMultiWriter([]sim.TelemetryWriter{sim.NewBusWriter(bus, appCfg.Broker.Topics), writer}, nil, nil)
		}

		n, err := sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		log.Info("replay finished", "input", replayInput, "rows", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to status journal (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print rows to STDOUT instead of publishing them")
	replayCmd.MarkFlagRequired("input")
}
