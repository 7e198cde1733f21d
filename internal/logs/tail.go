package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"mangawatch/internal/textutil"
)

const (
	pollEvery     = 250 * time.Millisecond
	maxLineLength = 1 << 20
)

// Options selects the lines Tail returns.
type Options struct {
	// From is the byte offset to resume after. Negative means "the last
	// Lines lines".
	From  int64
	Lines int
	// Wait is how long to block for new lines when none are available yet.
	Wait time.Duration
	// Match keeps only lines containing it, ignoring case.
	Match string
}

// Page is one read of the log file.
type Page struct {
	Lines []string `json:"lines"`
	Next  int64    `json:"next"`
}

// Tail reads path according to opts. A missing file is an empty page.
func Tail(ctx context.Context, path string, opts Options) (Page, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Page{}, nil
	}
	if err != nil {
		return Page{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Page{}, fmt.Errorf("log path %q is a directory", path)
	}

	var page Page
	if opts.From < 0 {
		page, err = lastLines(path, opts.Lines, opts.Match)
	} else {
		from := opts.From
		if from > info.Size() {
			// Rotated or truncated; start over from the end.
			from = info.Size()
		}
		page, err = readAfter(path, from, opts.Match)
	}
	if err != nil || len(page.Lines) > 0 || opts.Wait <= 0 {
		return page, err
	}
	return waitFor(ctx, path, page.Next, opts)
}

func lastLines(path string, limit int, match string) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Page{}, fmt.Errorf("seek log file: %w", err)
		}
		return Page{Next: end}, nil
	}

	ring := make([]string, 0, limit)
	next, err := scan(file, match, func(line string) {
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Lines: ring, Next: next}, nil
}

func readAfter(path string, offset int64, match string) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	next, err := scan(file, match, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return Page{}, err
	}
	return Page{Lines: lines, Next: next}, nil
}

// scan feeds matching lines to keep and returns the offset after the last
// byte read.
func scan(file *os.File, match string, keep func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		line := scanner.Text()
		if match == "" || textutil.ContainsFold(line, match) {
			keep(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	next, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return next, nil
}

func waitFor(ctx context.Context, path string, offset int64, opts Options) (Page, error) {
	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	page := Page{Next: offset}
	for {
		select {
		case <-ctx.Done():
			return page, ctx.Err()
		case <-deadline.C:
			return page, nil
		case <-ticker.C:
		}
		next, err := readAfter(path, page.Next, opts.Match)
		if err != nil {
			return page, err
		}
		page.Next = next.Next
		if len(next.Lines) > 0 {
			page.Lines = next.Lines
			return page, nil
		}
	}
}
