package main

import (
	"github.com/spf13/cobra"

	"mangawatch/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var once bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the mangawatch daemon in the foreground",
		Long:         "Run the daemon in the foreground. `mangawatch start` launches this command detached; --once runs a single check and exits, which suits cron and systemd timers.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				Once:     once,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&once, "once", false, "Run one check cycle and exit")
	return cmd
}
