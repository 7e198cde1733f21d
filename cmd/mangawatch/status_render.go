package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"mangawatch/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// daemonLines summarizes the process and poll loop.
func daemonLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 6)
	if !status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
		lines = append(lines, renderStatusLine("Tracked series", statusInfo, fmt.Sprintf("%d", status.SeriesTracked), colorize))
		return lines
	}

	detail := fmt.Sprintf("Running (pid %d)", status.PID)
	if !status.StartedAt.IsZero() {
		detail = fmt.Sprintf("%s since %s", detail, status.StartedAt.Local().Format(time.DateTime))
	}
	lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	lines = append(lines, renderStatusLine("Tracked series", statusInfo, fmt.Sprintf("%d", status.SeriesTracked), colorize))
	lines = append(lines, renderStatusLine("Pending sessions", statusInfo,
		fmt.Sprintf("%d selection, %d removal", status.PendingSelections, status.PendingRemovals), colorize))

	poll := status.Poller
	pollDetail := fmt.Sprintf("every %s, %d cycles run", poll.Interval, poll.CyclesRun)
	if poll.SkippedTicks > 0 {
		pollDetail = fmt.Sprintf("%s, %d ticks skipped", pollDetail, poll.SkippedTicks)
	}
	pollKind := statusOK
	if !poll.Running {
		pollKind = statusWarn
		pollDetail = "stopped"
	}
	lines = append(lines, renderStatusLine("Poll loop", pollKind, pollDetail, colorize))
	if !poll.NextRun.IsZero() {
		lines = append(lines, renderStatusLine("Next check", statusInfo, poll.NextRun.Local().Format(time.DateTime), colorize))
	}

	if last := poll.LastCycle; last != nil {
		kind := statusOK
		detail := fmt.Sprintf("%d checked, %d updates, %d skipped, %d failed",
			last.Checked, last.Updates, last.Skipped, last.Failed)
		switch {
		case last.Error != "":
			kind = statusError
			detail = last.Error
		case last.Failed > 0:
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Last cycle", kind, detail, colorize))
	}
	return lines
}

func preflightLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, len(status.Preflight))
	for _, check := range status.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func pathLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("Watch list", statusInfo, status.WatchlistPath, colorize),
	}
	if status.HistoryPath != "" {
		lines = append(lines, renderStatusLine("History", statusInfo, status.HistoryPath, colorize))
	} else {
		lines = append(lines, renderStatusLine("History", statusWarn, "disabled", colorize))
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log file", statusInfo, status.LogPath, colorize))
	}
	return lines
}
