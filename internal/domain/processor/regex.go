package processor

import (
	"strings"

	"github.com/dlclark/regexp2"
)

const blockSeparator = "\n--\n"

// RegexProcessor runs a line-oriented (or whole-text, when
// multiline) regex search with merged context blocks.
type RegexProcessor struct{}

// NewRegexProcessor constructs a RegexProcessor.
func NewRegexProcessor() *RegexProcessor { return &RegexProcessor{} }

func (p *RegexProcessor) Name() string { return "regex" }

func (p *RegexProcessor) Process(content string, params Params) Result {
	if params.String("mode") != "regex" && params.String("mode") != "" {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}
	if !params.Has("pattern") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	pattern := params.String("pattern")
	opts := regexp2.None
	if params.Bool("case_insensitive") {
		opts |= regexp2.IgnoreCase
	}
	multiline := params.Bool("multiline")
	if multiline {
		opts |= regexp2.Multiline
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return Result{
			Content:       content,
			OriginalSize:  len(content),
			ProcessedSize: len(content),
			Error:         "invalid regex pattern: " + err.Error(),
		}
	}

	contextLines, _ := params.Int("context_lines")
	if contextLines < 0 {
		contextLines = 0
	}
	maxResults, ok := params.Int("max_results")
	if !ok || maxResults <= 0 {
		maxResults = 100
	}

	var blocks []blockRange
	if multiline {
		blocks = matchWholeText(re, content, maxResults)
	} else {
		blocks = matchLines(re, content, contextLines, maxResults)
	}

	lines := strings.Split(content, "\n")
	merged := mergeBlocks(blocks)
	out := renderBlocks(lines, merged)

	return Result{
		Content:       out,
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
		Metadata:      map[string]any{"matches": len(merged)},
	}
}

type blockRange struct {
	start, end int // inclusive line indices
}

// matchLines scans content line by line, emitting a blockRange of
// [line-contextLines, line+contextLines] for every matching line, up to
// maxResults matches.
func matchLines(re *regexp2.Regexp, content string, contextLines, maxResults int) []blockRange {
	lines := strings.Split(content, "\n")
	var blocks []blockRange
	for i, line := range lines {
		if len(blocks) >= maxResults {
			break
		}
		m, err := re.FindStringMatch(line)
		if err != nil || m == nil {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines
		if end >= len(lines) {
			end = len(lines) - 1
		}
		blocks = append(blocks, blockRange{start: start, end: end})
	}
	return blocks
}

// matchWholeText matches against the entire text and maps each match's byte
// offset back to its containing line, producing a single-line blockRange
// per match (context_lines has no defined whole-text analogue, so it is
// ignored in this mode; callers wanting context should omit multiline).
func matchWholeText(re *regexp2.Regexp, content string, maxResults int) []blockRange {
	lineStarts := lineStartOffsets(content)
	var blocks []blockRange
	m, err := re.FindStringMatch(content)
	for err == nil && m != nil && len(blocks) < maxResults {
		line := lineForOffset(lineStarts, m.Index)
		blocks = append(blocks, blockRange{start: line, end: line})
		m, err = re.FindNextMatch(m)
	}
	return blocks
}

func lineStartOffsets(content string) []int {
	offsets := []int{0}
	for i, c := range content {
		if c == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func lineForOffset(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// mergeBlocks sorts and merges overlapping/adjacent block ranges so each
// source line appears in at most one output block, deduplicating
// overlapping blocks into one.
func mergeBlocks(blocks []blockRange) []blockRange {
	if len(blocks) == 0 {
		return nil
	}
	sorted := append([]blockRange(nil), blocks...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].start > sorted[j].start; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	merged := []blockRange{sorted[0]}
	for _, b := range sorted[1:] {
		last := &merged[len(merged)-1]
		if b.start <= last.end+1 {
			if b.end > last.end {
				last.end = b.end
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

func renderBlocks(lines []string, blocks []blockRange) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, strings.Join(lines[b.start:b.end+1], "\n"))
	}
	return strings.Join(parts, blockSeparator)
}
