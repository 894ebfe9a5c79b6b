package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sounder-sim/internal/config"
	"sounder-sim/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// appCfg is loaded once per invocation before any subcommand runs.
	appCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sounder-sim",
	Short: "Sounder device simulator",
	Long: "sounder-sim emulates a sounder device: an MQTT command interpreter with periodic\n" +
		"status telemetry, and a set of synthetic MJPEG camera channels.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Logging.Format = logFormat
		}
		log, err := logging.NewWithOptions(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		slog.SetDefault(log)
		appCfg = cfg
		cmd.SetContext(logging.NewContext(cmd.Context(), log))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to device configuration YAML (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(deviceCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(dashboardCmd)
}
