package processor

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func buildThousandLines(errorLines map[int]bool) string {
	var b strings.Builder
	for i := 1; i <= 1000; i++ {
		if errorLines[i] {
			b.WriteString("line " + strconv.Itoa(i) + " ERROR occurred\n")
		} else {
			b.WriteString("line " + strconv.Itoa(i) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func TestRegexSearchContextBlocksMergedAndSeparated(t *testing.T) {
	content := buildThousandLines(map[int]bool{10: true, 250: true, 800: true})
	p := NewRegexProcessor()

	res := p.Process(content, Params{
		"pattern":       "ERROR",
		"mode":          "regex",
		"context_lines": 2,
		"max_results":   2,
	})
	if !res.Applied {
		t.Fatalf("expected Applied=true")
	}

	blocks := strings.Split(res.Content, "--")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks separated by sentinel, got %d: %q", len(blocks), res.Content)
	}
	if !strings.Contains(blocks[0], "line 8") || !strings.Contains(blocks[0], "line 12") {
		t.Fatalf("expected first block to span lines 8-12, got %q", blocks[0])
	}
	if !strings.Contains(blocks[1], "line 248") || !strings.Contains(blocks[1], "line 252") {
		t.Fatalf("expected second block to span lines 248-252, got %q", blocks[1])
	}
}

func TestRegexSearchCaseInsensitive(t *testing.T) {
	content := "alpha\nBETA\ngamma"
	p := NewRegexProcessor()
	res := p.Process(content, Params{"pattern": "beta", "mode": "regex", "case_insensitive": true})
	if !strings.Contains(res.Content, "BETA") {
		t.Fatalf("expected case-insensitive match, got %q", res.Content)
	}
}

func TestRegexSearchSkippedWithoutPattern(t *testing.T) {
	content := "some content"
	p := NewRegexProcessor()
	res := p.Process(content, Params{})
	if res.Applied {
		t.Fatalf("expected Applied=false without pattern")
	}
	if res.Content != content {
		t.Fatalf("expected passthrough")
	}
}

func TestRegexSearchMergesOverlappingBlocks(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("l%d", i)
	}
	lines[3] = "l3 ERROR"
	lines[4] = "l4 ERROR"
	content := strings.Join(lines, "\n")

	p := NewRegexProcessor()
	res := p.Process(content, Params{"pattern": "ERROR", "mode": "regex", "context_lines": 1})
	if strings.Count(res.Content, "--") != 0 {
		t.Fatalf("expected adjacent matches to merge into a single block, got %q", res.Content)
	}
}
