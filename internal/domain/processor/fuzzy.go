package processor

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// FuzzyProcessor chunks the content as in BM25, then
// score each chunk by the minimum normalized Levenshtein distance between
// the pattern and any same-length sliding token window inside the chunk.
type FuzzyProcessor struct{}

// NewFuzzyProcessor constructs a FuzzyProcessor.
func NewFuzzyProcessor() *FuzzyProcessor { return &FuzzyProcessor{} }

func (p *FuzzyProcessor) Name() string { return "fuzzy" }

func (p *FuzzyProcessor) Process(content string, params Params) Result {
	if params.String("mode") != "fuzzy" || !params.Has("pattern") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	threshold, ok := params.Float("fuzzy_threshold")
	if !ok || threshold < 0 || threshold > 1 {
		threshold = 0.7
	}
	maxResults, ok := params.Int("max_results")
	if !ok || maxResults <= 0 {
		maxResults = 100
	}

	pattern := params.String("pattern")
	chunks := chunkText(content)

	// A fast subsequence pre-filter trims candidates before the exact,
	// more expensive sliding-window Levenshtein pass below: chunks that
	// don't even loosely match the pattern as a fuzzy subsequence can't
	// reach a high windowed score either.
	candidates := preFilterCandidates(pattern, chunks)

	type scored struct {
		chunk string
		score float64
	}
	var results []scored
	for _, idx := range candidates {
		score := slidingWindowScore(pattern, chunks[idx])
		if score >= threshold {
			results = append(results, scored{chunk: chunks[idx], score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.chunk)
	}
	out := strings.Join(parts, blockSeparator)

	return Result{
		Content:       out,
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
		Metadata:      map[string]any{"chunks": len(chunks), "matched": len(results)},
	}
}

// preFilterCandidates returns the indices of chunks worth scoring exactly,
// using sahilm/fuzzy's subsequence matcher as a cheap first pass over
// large corpora. If nothing matches loosely, every chunk is still
// considered, since the precise sliding-window score is the authority.
func preFilterCandidates(pattern string, chunks []string) []int {
	if len(chunks) == 0 {
		return nil
	}
	matches := fuzzy.Find(pattern, chunks)
	if len(matches) == 0 {
		all := make([]int, len(chunks))
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Index)
	}
	return out
}

// slidingWindowScore computes 1 - (minimum normalized Levenshtein distance
// between pattern and any same-token-length window of chunk).
func slidingWindowScore(pattern, chunk string) float64 {
	queryTokens := tokenize(pattern)
	chunkTokens := tokenize(chunk)
	if len(queryTokens) == 0 || len(chunkTokens) == 0 {
		return 0
	}
	query := strings.Join(queryTokens, " ")
	windowLen := len(queryTokens)

	if windowLen >= len(chunkTokens) {
		window := strings.Join(chunkTokens, " ")
		return 1 - normalizedLevenshtein(query, window)
	}

	best := 1.0
	for i := 0; i+windowLen <= len(chunkTokens); i++ {
		window := strings.Join(chunkTokens[i:i+windowLen], " ")
		d := normalizedLevenshtein(query, window)
		if d < best {
			best = d
		}
	}
	return 1 - best
}

// normalizedLevenshtein returns the Levenshtein edit distance between a
// and b divided by the longer string's length, in [0, 1].
func normalizedLevenshtein(a, b string) float64 {
	d := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(d) / float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
