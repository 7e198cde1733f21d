package main

import (
	"strings"
	"testing"
)

func TestRenderTableWrapsLongTitles(t *testing.T) {
	long := strings.Repeat("word ", 20)
	out := renderTable([]string{"Title", "Chapter"}, [][]string{{long, "12.5"}}, []columnAlignment{alignLeft, alignRight})
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if n := len([]rune(line)); n > maxTextColumnWidth+20 {
			t.Fatalf("line not wrapped (%d runes): %q", n, line)
		}
	}
	if !strings.Contains(out, "12.5") {
		t.Fatalf("missing chapter cell in %q", out)
	}
}

func TestRenderTableNoHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
