package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mangawatch/internal/ipc"
	"mangawatch/internal/tracking"
	"mangawatch/internal/watchlist"
)

// defaultUser keys tracking sessions when --user is not given.
func defaultUser() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "cli"
}

// printResult writes a successful reply to stdout and turns a failed one
// into the command error.
func printResult(cmd *cobra.Command, resp *ipc.CommandResponse) error {
	if resp == nil {
		return errors.New("daemon returned no response")
	}
	if !resp.OK {
		return errors.New(resp.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}

func titleArg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newTrackingCommands(ctx *commandContext) []*cobra.Command {
	var trackUser string
	trackCmd := &cobra.Command{
		Use:   "track <title>",
		Short: "Search the catalog and start tracking a series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Track(trackUser, titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}
	trackCmd.Flags().StringVar(&trackUser, "user", defaultUser(), "Session owner for the follow-up select")

	var selectUser string
	selectCmd := &cobra.Command{
		Use:   "select <number>",
		Short: "Pick a series from the last track search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := tracking.ParseIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Select(selectUser, index)
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}
	selectCmd.Flags().StringVar(&selectUser, "user", defaultUser(), "Session owner of the pending search")

	var untrackUser string
	untrackCmd := &cobra.Command{
		Use:   "untrack <title>",
		Short: "Stop tracking a series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Untrack(untrackUser, titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}
	untrackCmd.Flags().StringVar(&untrackUser, "user", defaultUser(), "Session owner for the follow-up confirm-remove")

	var confirmUser string
	confirmCmd := &cobra.Command{
		Use:     "confirm-remove <number>",
		Aliases: []string{"confirm_remove"},
		Short:   "Pick the series to remove from the last untrack",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := tracking.ParseIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ConfirmRemove(confirmUser, index)
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}
	confirmCmd.Flags().StringVar(&confirmUser, "user", defaultUser(), "Session owner of the pending removal")

	var listJSON bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked series",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List()
				if err != nil {
					return err
				}
				if listJSON {
					entries := resp.Entries
					if entries == nil {
						entries = []watchlist.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderWatchlist(resp.Entries))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the watch list as JSON")

	latestCmd := &cobra.Command{
		Use:   "latest <title>",
		Short: "Show the latest recorded chapter of a tracked series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Latest(titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search the catalog without tracking",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Search(titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info <title>",
		Short: "Show catalog details of a tracked series",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Info(titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}

	markReadCmd := &cobra.Command{
		Use:     "mark-read <title>",
		Aliases: []string{"markread"},
		Short:   "Mark the latest chapter of a tracked series as read",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MarkRead(titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}

	return []*cobra.Command{trackCmd, selectCmd, untrackCmd, confirmCmd, listCmd, latestCmd, searchCmd, infoCmd, markReadCmd}
}

func renderWatchlist(entries []watchlist.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		s := entry.Series
		source := "mangadex"
		if s.Scraper != nil {
			source = "mangadex+scraper"
		}
		rows = append(rows, []string{
			s.Title,
			s.LastChapterNumber.Display("N/A"),
			s.ChapterTitle(),
			yesNo(!s.Unread()),
			source,
			entry.ID,
		})
	}
	return renderTable(
		[]string{"Title", "Chapter", "Chapter Title", "Read", "Source", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func newScraperCommand(ctx *commandContext) *cobra.Command {
	scraperCmd := &cobra.Command{
		Use:   "scraper",
		Short: "Manage the secondary chapter source of a tracked series",
	}

	var checkURL, selector, readTemplate string
	setCmd := &cobra.Command{
		Use:   "set <title>",
		Short: "Attach a scraped page as a secondary chapter source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetScraper(ipc.SetScraperRequest{
					Title:           titleArg(args),
					CheckURL:        checkURL,
					CheckSelector:   selector,
					ReadURLTemplate: readTemplate,
				})
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}
	setCmd.Flags().StringVar(&checkURL, "url", "", "Page listing the chapters")
	setCmd.Flags().StringVar(&selector, "selector", "", "CSS selector of the element holding the latest chapter")
	setCmd.Flags().StringVar(&readTemplate, "read-url", "", "Reading link template; {} is replaced by the chapter number")
	_ = setCmd.MarkFlagRequired("url")
	_ = setCmd.MarkFlagRequired("selector")
	_ = setCmd.MarkFlagRequired("read-url")

	clearCmd := &cobra.Command{
		Use:   "clear <title>",
		Short: "Remove the secondary chapter source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearScraper(titleArg(args))
				if err != nil {
					return err
				}
				return printResult(cmd, resp)
			})
		},
	}

	scraperCmd.AddCommand(setCmd, clearCmd)
	return scraperCmd
}
