package processor

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Processor ranks paragraph-chunked content against a
// whitespace-tokenized query using BM25.
type BM25Processor struct{}

// NewBM25Processor constructs a BM25Processor.
func NewBM25Processor() *BM25Processor { return &BM25Processor{} }

func (p *BM25Processor) Name() string { return "bm25" }

func (p *BM25Processor) Process(content string, params Params) Result {
	if params.String("mode") != "bm25" || !params.Has("pattern") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	topK, ok := params.Int("top_k")
	if !ok || topK <= 0 {
		topK = 5
	}

	chunks := chunkText(content)
	query := tokenize(params.String("pattern"))
	scores := scoreBM25(chunks, query)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if len(order) > topK {
		order = order[:topK]
	}

	parts := make([]string, 0, len(order))
	for _, i := range order {
		parts = append(parts, fmt.Sprintf("[score=%.4f] %s", scores[i], chunks[i]))
	}
	out := strings.Join(parts, blockSeparator)

	return Result{
		Content:       out,
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
		Metadata:      map[string]any{"chunks": len(chunks), "returned": len(order)},
	}
}

// scoreBM25 computes the Okapi BM25 score of query against every chunk,
// using k1=1.5, b=0.75.
func scoreBM25(chunks []string, query []string) []float64 {
	n := len(chunks)
	scores := make([]float64, n)
	if n == 0 || len(query) == 0 {
		return scores
	}

	docTokens := make([][]string, n)
	docFreq := make(map[string]int)
	var totalLen int
	for i, c := range chunks {
		toks := tokenize(c)
		docTokens[i] = toks
		totalLen += len(toks)
		seen := make(map[string]bool)
		for _, t := range toks {
			seen[t] = true
		}
		for t := range seen {
			docFreq[t]++
		}
	}
	avgLen := float64(totalLen) / float64(n)

	idf := make(map[string]float64, len(query))
	for _, term := range query {
		if _, ok := idf[term]; ok {
			continue
		}
		df := docFreq[term]
		idf[term] = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	}

	for i, toks := range docTokens {
		termFreq := make(map[string]int, len(toks))
		for _, t := range toks {
			termFreq[t]++
		}
		docLen := float64(len(toks))
		var score float64
		for _, term := range query {
			tf := float64(termFreq[term])
			if tf == 0 {
				continue
			}
			numerator := tf * (bm25K1 + 1)
			denominator := tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
			score += idf[term] * numerator / denominator
		}
		scores[i] = score
	}
	return scores
}
