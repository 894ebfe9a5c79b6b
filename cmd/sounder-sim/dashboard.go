package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sounder-sim/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the Grafana dashboard for the GreptimeDB tables",
	Long:  "dashboard writes a Grafana dashboard JSON; the datasource uid is read from GREPTIMEDB_DATASOURCE_UID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := dashboard.Render(dashboardOut, dashboard.Options{
			Title:       appCfg.Device.ID,
			StatusTable: appCfg.Sinks.Greptime.StatusTable,
			AlertTable:  appCfg.Sinks.Greptime.AlertTable,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Dashboard written to", path)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
