package main

import (
	"github.com/spf13/cobra"

	"mangawatch/internal/daemonrun"
)

func newDaemonCommand() *cobra.Command {
	var configPath string
	var logLevel string
	var once bool

	cmd := &cobra.Command{
		Use:           "mangawatchd",
		Short:         "Run the mangawatch daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := daemonrun.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				Once:     once,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&once, "once", false, "Run one check cycle and exit")
	return cmd
}
