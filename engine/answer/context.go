// Package answer assembles retrieval results into a bounded context and
// synthesizes a templated answer from it. Generation is rule based: no LLM
// sits between retrieval and the user, so an answer is only ever rearranged
// source text.
package answer

import (
	"fmt"
	"unicode/utf8"

	"github.com/kpxlab/marketrag/engine/domain"
)

// Context is the assembled input for synthesis.
type Context struct {
	// Text is the concatenated labeled blocks.
	Text string
	// Blocks is the number of results actually included.
	Blocks int
	// Sources are the distinct source files of included blocks, in first
	// appearance order.
	Sources []string
	// AvgSimilarity is the mean similarity of included blocks, 0 when none.
	AvgSimilarity float64
}

// DefaultMaxChars bounds the assembled context. A rune budget.
const DefaultMaxChars = 4000

// Build formats results into labeled blocks and admits them in order while
// the total stays within maxChars. A block that would overflow the budget is
// omitted whole, never truncated, and admission stops there: the output is
// always a prefix of the ranked input.
func Build(results []domain.SearchResult, maxChars int) Context {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var asm Context
	seen := make(map[string]bool)
	var total int
	var text []byte
	for i, res := range results {
		block := fmt.Sprintf("[문서 %d] (출처: %s, 유사도: %.3f)\n%s\n", i+1, res.SourceFile, res.Similarity, res.Text)
		n := utf8.RuneCountInString(block)
		if total+n > maxChars {
			break
		}
		total += n
		text = append(text, block...)
		asm.Blocks++
		asm.AvgSimilarity += res.Similarity
		if res.SourceFile != "" && !seen[res.SourceFile] {
			seen[res.SourceFile] = true
			asm.Sources = append(asm.Sources, res.SourceFile)
		}
	}
	if asm.Blocks > 0 {
		asm.AvgSimilarity /= float64(asm.Blocks)
	}
	asm.Text = string(text)
	return asm
}
