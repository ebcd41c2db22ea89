package processor

import (
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`(?s)[^.!?]*[.!?]+`)

// chunkText splits content into paragraphs (blank-line separated); when no
// paragraph boundary exists it falls back to sentence chunks.
func chunkText(content string) []string {
	paras := splitParagraphs(content)
	if len(paras) > 1 {
		return paras
	}
	sentences := sentenceSplitter.FindAllString(content, -1)
	if len(sentences) == 0 {
		return paras
	}
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return paras
	}
	return out
}

func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	return out
}

// tokenize lowercases and whitespace-splits s, the tokenization used for
// both the corpus and the query.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
