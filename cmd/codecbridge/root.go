package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "codecbridge",
		Short:         "Tieline codec bridge",
		Long:          "Polls a Tieline codec and republishes its state over MQTT, InfluxDB, HTTP and WebSocket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newStatusCommand(&configFlag))
	rootCmd.AddCommand(newTokenCommand(&configFlag))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(*configFlag))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codecbridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
