// Package retrieve implements the four retrieval strategies over the vector
// index and the chunk catalog: semantic, keyword, hybrid, and smart
// (domain-aware hybrid).
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ruleset"
	"github.com/kpxlab/marketrag/engine/semantic"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the slice of the vector store retrieval needs.
type VectorSearcher interface {
	SearchFiltered(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]semantic.Hit, error)
}

// ChunkScanner is the slice of the catalog keyword retrieval needs.
type ChunkScanner interface {
	SearchText(ctx context.Context, terms []string, limit int, category string) ([]domain.Chunk, error)
}

// Options tune retrieval behavior.
type Options struct {
	// TopK is the default result count when the caller passes topK <= 0.
	TopK int
	// MinSimilarity drops semantic hits below this similarity.
	MinSimilarity float64
	// SemanticWeight and KeywordWeight blend the two scores in hybrid
	// search. They should sum to 1.
	SemanticWeight float64
	KeywordWeight  float64
	// Overfetch multiplies topK on the index query so post-filtering still
	// fills the page.
	Overfetch int
}

// DefaultOptions returns the production retrieval tuning.
func DefaultOptions() Options {
	return Options{
		TopK:           5,
		MinSimilarity:  0.7,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		Overfetch:      2,
	}
}

// Retriever executes searches. Construct with New.
type Retriever struct {
	embed   Embedder
	index   VectorSearcher
	catalog ChunkScanner
	rules   *ruleset.Ruleset
	opts    Options
	logger  *slog.Logger
}

// New builds a Retriever. A nil rules falls back to the built-in ruleset.
func New(embed Embedder, index VectorSearcher, catalog ChunkScanner, rules *ruleset.Ruleset, opts Options, logger *slog.Logger) *Retriever {
	if rules == nil {
		rules = ruleset.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultOptions().Overfetch
	}
	return &Retriever{embed: embed, index: index, catalog: catalog, rules: rules, opts: opts, logger: logger}
}

// Search dispatches to the strategy named by method. An unknown method is
// treated as hybrid.
func (r *Retriever) Search(ctx context.Context, query string, topK int, method domain.SearchMethod) ([]domain.SearchResult, error) {
	switch method {
	case domain.SearchSemantic:
		return r.Semantic(ctx, query, topK)
	case domain.SearchKeyword:
		return r.Keyword(ctx, query, topK)
	case domain.SearchSmart:
		return r.Smart(ctx, query, topK)
	default:
		return r.Hybrid(ctx, query, topK)
	}
}

// Semantic runs pure vector similarity search. Hits below MinSimilarity are
// dropped after the index query.
func (r *Retriever) Semantic(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	topK = r.pageSize(topK)

	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewRetrievalError("embed query", err)
	}

	hits, err := r.index.SearchFiltered(ctx, vec, topK*r.opts.Overfetch, nil)
	if err != nil {
		return nil, domain.NewRetrievalError("vector search", err)
	}

	results := make([]domain.SearchResult, 0, topK)
	for _, h := range hits {
		if h.Score < r.opts.MinSimilarity {
			continue
		}
		res := h.Result()
		res.Relevance = res.Similarity
		results = append(results, res)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// Keyword scores catalog chunks by the weighted fraction of query terms they
// contain. Domain terms carry weights above 1, so a chunk hitting only
// high-value vocabulary can outrank one hitting more ordinary terms.
func (r *Retriever) Keyword(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	topK = r.pageSize(topK)
	return r.keyword(ctx, query, topK, "")
}

func (r *Retriever) keyword(ctx context.Context, query string, topK int, category string) ([]domain.SearchResult, error) {
	terms := splitTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	chunks, err := r.catalog.SearchText(ctx, terms, topK*r.opts.Overfetch*10, category)
	if err != nil {
		return nil, domain.NewRetrievalError("catalog scan", err)
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, ch := range chunks {
		score := r.ScoreKeywords(ch.Text, terms)
		if score <= 0 {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:         ch.ID,
			Text:       ch.Text,
			Relevance:  score,
			DocID:      ch.DocID,
			SourceFile: ch.SourceFile,
			Meta:       map[string]string{"category": ch.Category},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ScoreKeywords returns the sum of weights of query terms present in text,
// divided by the term count. A text containing no term scores 0.
func (r *Retriever) ScoreKeywords(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	var sum float64
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			sum += r.rules.TermWeight(term)
		}
	}
	return sum / float64(len(terms))
}

// Hybrid blends semantic similarity and keyword relevance into one score.
func (r *Retriever) Hybrid(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	topK = r.pageSize(topK)
	return r.hybrid(ctx, query, topK, "")
}

func (r *Retriever) hybrid(ctx context.Context, query string, topK int, category string) ([]domain.SearchResult, error) {
	var filter map[string]string
	if category != "" {
		filter = map[string]string{"category": category}
	}

	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewRetrievalError("embed query", err)
	}
	hits, err := r.index.SearchFiltered(ctx, vec, topK*r.opts.Overfetch, filter)
	if err != nil {
		return nil, domain.NewRetrievalError("vector search", err)
	}

	kwResults, err := r.keyword(ctx, query, topK*r.opts.Overfetch, category)
	if err != nil {
		return nil, err
	}
	kwByID := make(map[string]float64, len(kwResults))
	for _, kr := range kwResults {
		kwByID[kr.ID] = kr.Relevance
	}

	merged := make(map[string]domain.SearchResult, len(hits)+len(kwResults))
	for _, h := range hits {
		res := h.Result()
		res.Relevance = r.opts.SemanticWeight*res.Similarity + r.opts.KeywordWeight*kwByID[res.ID]
		merged[res.ID] = res
	}
	for _, kr := range kwResults {
		if _, seen := merged[kr.ID]; seen {
			continue
		}
		kr.Relevance = r.opts.KeywordWeight * kr.Relevance
		merged[kr.ID] = kr
	}

	results := make([]domain.SearchResult, 0, len(merged))
	for _, res := range merged {
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Smart detects the query's domain and runs hybrid search restricted to the
// domain's category when one is detected, falling back to unrestricted
// hybrid search otherwise.
func (r *Retriever) Smart(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	topK = r.pageSize(topK)

	d, ok := r.rules.DetectDomain(query)
	if !ok {
		r.logger.Debug("smart search: no domain detected", "query", query)
		return r.hybrid(ctx, query, topK, "")
	}
	r.logger.Debug("smart search: domain detected", "query", query, "domain", d.Name)
	return r.hybrid(ctx, query, topK, d.Name)
}

func (r *Retriever) pageSize(topK int) int {
	if topK <= 0 {
		return r.opts.TopK
	}
	return topK
}

// splitTerms breaks a query into search terms on whitespace, dropping
// single-rune fragments.
func splitTerms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,?!:;\"'()[]")
		if len([]rune(f)) < 2 {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
