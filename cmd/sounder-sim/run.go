package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sounder-sim/internal/stream"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the device simulator and every video channel",
	Long: "run starts the command interpreter, the telemetry scheduler and all configured\n" +
		"camera channels in one process; a single interrupt stops them all.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		if err := applyDeviceFlags(cmd, cfg); err != nil {
			return err
		}
		infos, err := stream.SelectChannels(cfg.Stream, nil, true)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mgr := stream.NewManager(cfg.Stream, infos)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return mgr.Run(gctx) })
		g.Go(func() error { return runDevice(gctx, cfg, mgr) })
		return g.Wait()
	},
}

func init() {
	addDeviceFlags(runCmd)
}
