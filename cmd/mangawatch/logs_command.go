package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangawatch/internal/ipc"
	"mangawatch/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var match string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				printed, err := logstream.Stream(cmd.Context(), client, logstream.Options{
					Lines:  lines,
					Follow: follow,
					Match:  match,
				}, func(line string) {
					fmt.Fprintln(out, line)
				})
				if err != nil {
					return err
				}
				if !printed && !follow {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for the whole file)")
	cmd.Flags().StringVar(&match, "match", "", "Only show lines containing this text (case-insensitive)")
	return cmd
}
