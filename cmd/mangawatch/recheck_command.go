package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangawatch/internal/ipc"
	"mangawatch/internal/notifications"
)

func newRecheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recheck",
		Short: "Check every tracked series for new chapters now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Recheck()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Ran {
					fmt.Fprintln(out, resp.Message)
					return nil
				}
				for _, update := range resp.Updates {
					title, body := notifications.FormatUpdate(update)
					fmt.Fprintf(out, "%s\n  %s\n", title, body)
				}
				fmt.Fprintln(out, resp.Message)
				if resp.Cycle.Failed > 0 {
					fmt.Fprintf(out, "⚠️ %d series could not be checked; see `mangawatch logs`.\n", resp.Cycle.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the cycle report as JSON")
	return cmd
}
