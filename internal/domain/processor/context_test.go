package processor

import (
	"strings"
	"testing"
)

func TestContextSearchReturnsEnclosingParagraph(t *testing.T) {
	content := "first paragraph about apples.\n\nsecond paragraph mentions ERROR in the middle.\nwith a sibling sentence after it.\n\nthird paragraph about pears."
	p := NewContextProcessor()

	res := p.Process(content, Params{"pattern": "ERROR", "mode": "context"})
	if !res.Applied {
		t.Fatalf("expected Applied=true")
	}
	if !strings.Contains(res.Content, "second paragraph mentions ERROR") {
		t.Fatalf("expected the matching paragraph, got %q", res.Content)
	}
	if !strings.Contains(res.Content, "sibling sentence") {
		t.Fatalf("expected sibling sentences of the paragraph to be kept, got %q", res.Content)
	}
	if strings.Contains(res.Content, "apples") || strings.Contains(res.Content, "pears") {
		t.Fatalf("expected non-matching paragraphs to be dropped, got %q", res.Content)
	}
}

func TestContextSearchFallsBackToLineWindowsWithoutParagraphs(t *testing.T) {
	lines := []string{"l0", "l1", "l2 ERROR", "l3", "l4"}
	content := strings.Join(lines, "\n")
	p := NewContextProcessor()

	res := p.Process(content, Params{"pattern": "ERROR", "mode": "context", "context_lines": 1})
	if !res.Applied {
		t.Fatalf("expected Applied=true")
	}
	if !strings.Contains(res.Content, "l1") || !strings.Contains(res.Content, "l3") {
		t.Fatalf("expected one line of context on each side, got %q", res.Content)
	}
	if strings.Contains(res.Content, "l0") || strings.Contains(res.Content, "l4") {
		t.Fatalf("expected lines outside the window to be dropped, got %q", res.Content)
	}
}

func TestContextSearchCaseInsensitive(t *testing.T) {
	content := "alpha block.\n\nBETA block here.\n\ngamma block."
	p := NewContextProcessor()

	res := p.Process(content, Params{"pattern": "beta", "mode": "context", "case_insensitive": true})
	if !strings.Contains(res.Content, "BETA block") {
		t.Fatalf("expected case-insensitive paragraph match, got %q", res.Content)
	}
}

func TestContextSearchSkippedForOtherModes(t *testing.T) {
	content := "some content"
	p := NewContextProcessor()

	res := p.Process(content, Params{"pattern": "content", "mode": "regex"})
	if res.Applied {
		t.Fatalf("expected Applied=false when mode is not context")
	}
	if res.Content != content {
		t.Fatalf("expected passthrough")
	}
}

func TestContextSearchCapsResults(t *testing.T) {
	content := "p1 hit.\n\np2 hit.\n\np3 hit."
	p := NewContextProcessor()

	res := p.Process(content, Params{"pattern": "hit", "mode": "context", "max_results": 2})
	if got := strings.Count(res.Content, "hit"); got != 2 {
		t.Fatalf("expected 2 matched paragraphs, got %d: %q", got, res.Content)
	}
}
