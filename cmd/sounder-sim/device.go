package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sounder-sim/internal/admin"
	"sounder-sim/internal/config"
	"sounder-sim/internal/logging"
	"sounder-sim/internal/scenario"
	"sounder-sim/internal/sim"
	"sounder-sim/internal/telemetry"
	"sounder-sim/internal/transport"
)

var (
	deviceHost      string
	devicePort      int
	deviceTick      time.Duration
	deviceOffline   bool
	devicePrintOnly bool
	deviceLogFile   string
	deviceTUI       bool
	deviceScenario  string
	deviceAdminAddr string
)

const consoleCommandTimeout = 5 * time.Second

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Run the command interpreter and telemetry scheduler",
	Long: "device connects to the MQTT broker, answers commands on the commands topic and\n" +
		"publishes status rows every tick and occasional alerts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		if err := applyDeviceFlags(cmd, cfg); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDevice(ctx, cfg, nil)
	},
}

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&deviceHost, "host", "", "MQTT broker host (overrides config)")
	cmd.Flags().IntVar(&devicePort, "port", 0, "MQTT broker port (overrides config)")
	cmd.Flags().DurationVar(&deviceTick, "tick", 0, "Telemetry tick interval, e.g. 500ms or 2s (overrides config)")
	cmd.Flags().BoolVar(&deviceOffline, "offline", false, "Run without a broker; commands come from the console, admin UI or scenario")
	cmd.Flags().BoolVar(&devicePrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB or Kafka")
	cmd.Flags().StringVar(&deviceLogFile, "log-file", "", "Path to export status/alert/command logs (JSONL)")
	cmd.Flags().BoolVar(&deviceTUI, "tui", false, "Show the interactive console when STDOUT is a terminal")
	cmd.Flags().StringVar(&deviceScenario, "scenario", "", "Built-in scenario name or path to a scenario YAML to play on start")
	cmd.Flags().StringVar(&deviceAdminAddr, "admin-addr", "", "Admin UI listen address (overrides config, empty keeps config)")
}

// applyDeviceFlags copies explicitly set flags over the loaded configuration.
func applyDeviceFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Broker.Host = deviceHost
	}
	if flags.Changed("port") {
		cfg.Broker.Port = devicePort
	}
	if flags.Changed("tick") {
		cfg.Telemetry.Interval = deviceTick
	}
	if flags.Changed("log-file") {
		cfg.Sinks.LogFile = deviceLogFile
	}
	if flags.Changed("admin-addr") {
		cfg.Admin.Addr = deviceAdminAddr
	}
	return cfg.Validate()
}

// runDevice runs the simulator with its writers, the admin UI and the
// optional scenario until ctx is cancelled. channels is nil unless the video
// channels run in the same process.
func runDevice(ctx context.Context, cfg *config.Config, channels admin.ChannelSource) error {
	var script *scenario.Script
	if deviceScenario != "" {
		s, err := scenario.Resolve(deviceScenario)
		if err != nil {
			return err
		}
		script = s
	}

	opts := writerOptions{printOnly: devicePrintOnly, logFile: cfg.Sinks.LogFile, tui: deviceTUI}
	writer, cleanup, err := newWriters(cfg, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.useTUI() {
		log, closeLog, err := consoleLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()
		ctx = logging.NewContext(ctx, log)
	} else if deviceTUI {
		logging.FromContext(ctx).Warn("stdout is not a terminal, console disabled")
	}
	log := logging.FromContext(ctx)

	var bus transport.Bus
	if deviceOffline {
		bus = transport.NewMemoryBus()
	} else {
		bus = transport.NewMQTTBus(cfg.Broker, log)
	}
	simulator := sim.NewSimulator(cfg.Device.ID, cfg, bus, writer, writer, sim.WithCommandWriter(writer))

	writer.SetSubmitter(func(raw string) {
		cctx, cancel := context.WithTimeout(ctx, consoleCommandTimeout)
		defer cancel()
		if _, err := simulator.Execute(cctx, raw, telemetry.SourceConsole); err != nil {
			log.Warn("console command failed", "command", raw, "err", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return simulator.Run(gctx) })

	if cfg.Admin.Addr != "" {
		srv := admin.NewServer(simulator, channels)
		writer.SetAdminStatus(true)
		g.Go(func() error { return srv.Start(gctx, cfg.Admin.Addr) })
	}

	if script != nil {
		g.Go(func() error {
			log.Info("playing scenario", "name", script.Name, "steps", len(script.Steps), "duration", script.Duration())
			results, err := scenario.Play(gctx, script, simulator)
			for _, r := range results {
				log.Info("scenario step", "command", r.Step.Command, "response", r.Response.String(), "note", r.Step.Note)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, sim.ErrStopped) {
				return nil
			}
			if err != nil {
				return err
			}
			log.Info("scenario finished", "name", script.Name)
			return nil
		})
	}

	err = g.Wait()
	if mb, ok := bus.(*transport.MQTTBus); ok {
		published, failures := mb.Stats()
		log.Info("mqtt publish totals", "published", published, "failures", failures)
	}
	log.Info("device simulation stopped")
	return err
}

// consoleLogger keeps log output off the terminal while the console owns it:
// logs go next to the log file when one is configured and are dropped
// otherwise.
func consoleLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Sinks.LogFile == "" {
		return logging.Discard(), func() {}, nil
	}
	f, err := os.Create(cfg.Sinks.LogFile + ".log")
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.NewWithOptions(f, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return log, func() { f.Close() }, nil
}

func init() {
	addDeviceFlags(deviceCmd)
}
