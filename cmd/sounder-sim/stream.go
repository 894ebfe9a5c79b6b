package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sounder-sim/internal/logging"
	"sounder-sim/internal/stream"
)

var (
	streamPorts []int
	streamAll   bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Serve the synthetic camera channels",
	Long: "stream renders an animated test pattern per channel and serves it as MJPEG on the\n" +
		"channel's port. Without --port every configured channel is served.",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := stream.SelectChannels(appCfg.Stream, streamPorts, streamAll || len(streamPorts) == 0)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.FromContext(ctx)
		for _, info := range infos {
			log.Info("channel selected", "id", info.ID, "name", info.Name, "port", info.Port)
		}
		err = stream.NewManager(appCfg.Stream, infos).Run(ctx)
		log.Info("video channels stopped")
		return err
	},
}

func init() {
	streamCmd.Flags().IntSliceVar(&streamPorts, "port", nil, "Serve only the channels on these ports (repeatable or comma separated)")
	streamCmd.Flags().BoolVar(&streamAll, "all", false, "Serve every configured channel")
}
