// Package logstream drives repeated IPC log tail calls for `mangawatch logs`,
// optionally following the daemon log until the context ends.
package logstream

import (
	"context"
	"errors"
	"fmt"

	"mangawatch/internal/ipc"
)

const followWaitMillis = 1000

// TailClient captures the IPC log tail contract.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Options controls stream behavior.
type Options struct {
	Lines  int
	Follow bool
	Match  string
}

// Stream emits log lines through onLine. It returns true when at least one
// line was emitted. Context cancellation while following is a clean exit.
func Stream(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	if client == nil {
		return false, errors.New("log tail client unavailable")
	}

	req := ipc.LogTailRequest{Offset: -1, Limit: max(opts.Lines, 0), Match: opts.Match}
	if req.Limit == 0 {
		req.Offset = 0
	}
	if opts.Follow {
		req.WaitMillis = followWaitMillis
	}

	printed := false
	for {
		resp, err := client.LogTail(req)
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		req.Offset = resp.Offset
		req.Limit = 0
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
