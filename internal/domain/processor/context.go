package processor

import "strings"

// ContextProcessor is the paragraph-level analogue of regex mode. Given a
// pattern match, return the enclosing paragraph — or
// context_lines lines on each side when the content has no paragraph
// structure.
type ContextProcessor struct{}

// NewContextProcessor constructs a ContextProcessor.
func NewContextProcessor() *ContextProcessor { return &ContextProcessor{} }

func (p *ContextProcessor) Name() string { return "context" }

func (p *ContextProcessor) Process(content string, params Params) Result {
	if params.String("mode") != "context" || !params.Has("pattern") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	pattern := params.String("pattern")
	if params.Bool("case_insensitive") {
		pattern = strings.ToLower(pattern)
	}
	maxResults, ok := params.Int("max_results")
	if !ok || maxResults <= 0 {
		maxResults = 100
	}
	contextLines, _ := params.Int("context_lines")
	if contextLines < 0 {
		contextLines = 0
	}

	paragraphs := splitParagraphs(content)
	hasStructure := len(paragraphs) > 1

	var matched []string
	if hasStructure {
		for _, para := range paragraphs {
			if len(matched) >= maxResults {
				break
			}
			haystack := para
			if params.Bool("case_insensitive") {
				haystack = strings.ToLower(haystack)
			}
			if strings.Contains(haystack, pattern) {
				matched = append(matched, para)
			}
		}
	} else {
		lines := strings.Split(content, "\n")
		var blocks []blockRange
		for i, line := range lines {
			if len(blocks) >= maxResults {
				break
			}
			haystack := line
			if params.Bool("case_insensitive") {
				haystack = strings.ToLower(haystack)
			}
			if !strings.Contains(haystack, pattern) {
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
		for _, b := range mergeBlocks(blocks) {
			matched = append(matched, strings.Join(lines[b.start:b.end+1], "\n"))
		}
	}

	out := strings.Join(matched, blockSeparator)
	return Result{
		Content:       out,
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
		Metadata:      map[string]any{"matches": len(matched), "paragraphStructure": hasStructure},
	}
}
