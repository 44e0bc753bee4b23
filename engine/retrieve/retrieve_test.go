package retrieve

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ruleset"
	"github.com/kpxlab/marketrag/engine/semantic"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	hits       []semantic.Hit
	err        error
	lastFilter map[string]string
	lastTopK   int
}

func (f *fakeIndex) SearchFiltered(_ context.Context, _ []float32, topK int, filter map[string]string) ([]semantic.Hit, error) {
	f.lastFilter = filter
	f.lastTopK = topK
	return f.hits, f.err
}

type fakeCatalog struct {
	chunks []domain.Chunk
	err    error
}

func (f *fakeCatalog) SearchText(_ context.Context, _ []string, _ int, category string) ([]domain.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if category == "" {
		return f.chunks, nil
	}
	var out []domain.Chunk
	for _, ch := range f.chunks {
		if ch.Category == category {
			out = append(out, ch)
		}
	}
	return out, nil
}

func newTestRetriever(embed Embedder, index VectorSearcher, cat ChunkScanner) *Retriever {
	return New(embed, index, cat, ruleset.Default(), DefaultOptions(), nil)
}

func TestSemanticFiltersAndOrders(t *testing.T) {
	index := &fakeIndex{hits: []semantic.Hit{
		{ID: "a:0", Score: 0.95, Text: "계통 운영 기준"},
		{ID: "a:1", Score: 0.80, Text: "예비력 확보 기준"},
		{ID: "a:2", Score: 0.40, Text: "무관한 내용"},
	}}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, &fakeCatalog{})

	got, err := r.Semantic(context.Background(), "예비력 기준", 5)
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (threshold drops the third)", len(got))
	}
	if got[0].ID != "a:0" || got[1].ID != "a:1" {
		t.Errorf("order wrong: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Similarity != 0.95 || got[0].Relevance != 0.95 {
		t.Errorf("scores not carried: %+v", got[0])
	}
	if index.lastTopK != 10 {
		t.Errorf("overfetch topK = %d, want 10", index.lastTopK)
	}
}

func TestSemanticEmptyQuery(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeIndex{}, &fakeCatalog{})
	got, err := r.Semantic(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if got != nil {
		t.Errorf("want nil for empty query, got %v", got)
	}
}

func TestSemanticEmbedFailure(t *testing.T) {
	boom := errors.New("ollama down")
	r := newTestRetriever(&fakeEmbedder{err: boom}, &fakeIndex{}, &fakeCatalog{})

	_, err := r.Semantic(context.Background(), "예비력", 5)
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Errorf("want ErrRetrieval, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause not wrapped: %v", err)
	}
}

func TestKeywordWeightedScore(t *testing.T) {
	cat := &fakeCatalog{chunks: []domain.Chunk{
		{ID: "a:0", Text: "예비력 기준은 7% 이상이다", DocID: "a"},
		{ID: "a:1", Text: "오늘 날씨가 맑다", DocID: "a"},
	}}
	r := newTestRetriever(&fakeEmbedder{}, &fakeIndex{}, cat)

	got, err := r.Keyword(context.Background(), "예비력", 5)
	if err != nil {
		t.Fatalf("keyword: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 (zero-score chunk dropped)", len(got))
	}
	if got[0].ID != "a:0" {
		t.Errorf("id = %s, want a:0", got[0].ID)
	}
	// 예비력 carries weight 1.3 and is the only term.
	if math.Abs(got[0].Relevance-1.3) > 1e-9 {
		t.Errorf("relevance = %v, want 1.3", got[0].Relevance)
	}
}

func TestScoreKeywords(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeIndex{}, &fakeCatalog{})

	tests := []struct {
		name  string
		text  string
		terms []string
		want  float64
	}{
		{"no match", "오늘 날씨가 맑다", []string{"예비력"}, 0},
		{"weighted single", "예비력 기준은 7% 이상이다", []string{"예비력"}, 1.3},
		{"mixed", "발전계획 수립 절차", []string{"발전계획", "없는말"}, 0.75},
		{"plain term", "정산 완료", []string{"완료"}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ScoreKeywords(tt.text, tt.terms)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHybridBlendsScores(t *testing.T) {
	index := &fakeIndex{hits: []semantic.Hit{
		{ID: "a:0", Score: 0.9, Text: "예비력 기준은 7% 이상이다"},
	}}
	cat := &fakeCatalog{chunks: []domain.Chunk{
		{ID: "a:0", Text: "예비력 기준은 7% 이상이다", DocID: "a"},
		{ID: "a:1", Text: "예비력 정산 관련 조항", DocID: "a"},
	}}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, cat)

	got, err := r.Hybrid(context.Background(), "예비력", 5)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	// a:0: 0.7*0.9 + 0.3*1.3 = 1.02; a:1 keyword-only: 0.3*1.3 = 0.39.
	if got[0].ID != "a:0" || math.Abs(got[0].Relevance-1.02) > 1e-9 {
		t.Errorf("top = %s %.3f, want a:0 1.020", got[0].ID, got[0].Relevance)
	}
	if got[1].ID != "a:1" || math.Abs(got[1].Relevance-0.39) > 1e-9 {
		t.Errorf("second = %s %.3f, want a:1 0.390", got[1].ID, got[1].Relevance)
	}
}

func TestSmartAppliesDomainFilter(t *testing.T) {
	index := &fakeIndex{}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, &fakeCatalog{})

	if _, err := r.Smart(context.Background(), "예비력 확보 기준은?", 5); err != nil {
		t.Fatalf("smart: %v", err)
	}
	if index.lastFilter == nil || index.lastFilter["category"] != "예비력" {
		t.Errorf("filter = %v, want category=예비력", index.lastFilter)
	}
}

func TestSmartFallsBackWithoutDomain(t *testing.T) {
	index := &fakeIndex{}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, &fakeCatalog{})

	if _, err := r.Smart(context.Background(), "오늘 점심 뭐 먹지", 5); err != nil {
		t.Fatalf("smart: %v", err)
	}
	if index.lastFilter != nil {
		t.Errorf("filter = %v, want nil (unrestricted hybrid)", index.lastFilter)
	}
}

func TestSearchDispatch(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, &fakeIndex{}, &fakeCatalog{})
	for _, m := range []domain.SearchMethod{domain.SearchSemantic, domain.SearchKeyword, domain.SearchHybrid, domain.SearchSmart} {
		if _, err := r.Search(context.Background(), "예비력", 3, m); err != nil {
			t.Errorf("%s: %v", m, err)
		}
	}
}
