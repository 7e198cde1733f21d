package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mangawatch/internal/history"
	"mangawatch/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var cycles bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [title]",
		Short: "Show announced chapters and past check cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(ipc.HistoryRequest{
					Title:  titleArg(args),
					Limit:  limit,
					Cycles: cycles,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Deliveries) == 0 {
					fmt.Fprintln(out, "No chapters announced yet")
				} else {
					fmt.Fprint(out, renderDeliveries(resp.Deliveries))
					fmt.Fprintln(out)
				}
				if cycles {
					fmt.Fprintln(out)
					if len(resp.Cycles) == 0 {
						fmt.Fprintln(out, "No cycles recorded yet")
						return nil
					}
					fmt.Fprint(out, renderCycles(resp.Cycles))
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows")
	cmd.Flags().BoolVar(&cycles, "cycles", false, "Also list recent check cycles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print history as JSON")
	return cmd
}

func renderDeliveries(deliveries []history.Delivery) string {
	rows := make([][]string, 0, len(deliveries))
	for _, d := range deliveries {
		status := "sent"
		if strings.TrimSpace(d.DeliveryError) != "" {
			status = "failed: " + d.DeliveryError
		}
		rows = append(rows, []string{
			d.CreatedAt.Local().Format(time.DateTime),
			d.SeriesTitle,
			d.ChapterNumber,
			d.ChapterTitle,
			d.Source,
			status,
		})
	}
	return renderTable(
		[]string{"When", "Series", "Chapter", "Title", "Source", "Notification"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderCycles(cycles []history.Cycle) string {
	rows := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		rows = append(rows, []string{
			c.StartedAt.Local().Format(time.DateTime),
			c.Trigger,
			fmt.Sprintf("%d", c.Checked),
			fmt.Sprintf("%d", c.Updates),
			fmt.Sprintf("%d", c.Skipped),
			fmt.Sprintf("%d", c.Failed),
			c.FinishedAt.Sub(c.StartedAt).Round(time.Millisecond).String(),
			c.Error,
		})
	}
	return renderTable(
		[]string{"Started", "Trigger", "Checked", "Updates", "Skipped", "Failed", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}
