package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/kpxlab/marketrag/engine/chunker"
	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/semantic"
)

type fakeEmbedder struct {
	dims  int
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) Dims() int       { return f.dims }
func (f *fakeEmbedder) ModelID() string { return "test-model" }

type fakeVectors struct {
	upserts [][]semantic.Record
	deleted []string
	err     error
}

func (f *fakeVectors) Upsert(_ context.Context, records []semantic.Record) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeVectors) DeleteByDoc(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

type fakeCatalog struct {
	saved   []domain.Chunk
	has     bool
	deleted []string
}

func (f *fakeCatalog) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	f.saved = append(f.saved, chunks...)
	return nil
}

func (f *fakeCatalog) HasDocument(_ context.Context, _ string) (bool, error) {
	return f.has, nil
}

func (f *fakeCatalog) DeleteDocument(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

type fakeGraph struct {
	docs int
	refs int
	err  error
}

func (f *fakeGraph) SaveDocument(context.Context, domain.Document, []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.docs++
	return nil
}

func (f *fakeGraph) SaveReferences(_ context.Context, chunks []domain.Chunk) (int, error) {
	f.refs += len(chunks)
	return len(chunks), nil
}

func testDeps(t *testing.T) (Deps, *fakeEmbedder, *fakeVectors, *fakeCatalog, *fakeGraph) {
	t.Helper()
	splitter, err := chunker.New(chunker.Options{ChunkSize: 100, Overlap: 20})
	if err != nil {
		t.Fatal(err)
	}
	emb := &fakeEmbedder{dims: 4}
	vec := &fakeVectors{}
	cat := &fakeCatalog{}
	gr := &fakeGraph{}
	deps := Deps{
		Splitter: splitter,
		Embedder: emb,
		Vectors:  vec,
		Catalog:  cat,
		Graph:    gr,
		Logger:   slog.Default(),
	}
	return deps, emb, vec, cat, gr
}

func testDoc() domain.Document {
	return domain.Document{
		ID:         "rules-2024",
		SourceFile: "rules.pdf",
		FileType:   domain.FilePDF,
		Text:       "제16.4.1조에 따라 예비력은 수요의 7% 이상 확보하여야 한다. 정산 절차는 별표 3을 따른다.",
	}
}

func TestRunIndexesDocument(t *testing.T) {
	deps, _, vec, cat, gr := testDeps(t)

	stored, err := Run(context.Background(), deps, Job{Doc: testDoc()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stored.DocID != "rules-2024" || stored.Chunks == 0 {
		t.Errorf("stored = %+v", stored)
	}
	if len(cat.saved) != stored.Chunks {
		t.Errorf("catalog saved %d chunks, pipeline reported %d", len(cat.saved), stored.Chunks)
	}
	if len(vec.upserts) != 1 || len(vec.upserts[0]) != stored.Chunks {
		t.Errorf("vector upserts = %v", vec.upserts)
	}
	if gr.docs != 1 {
		t.Errorf("graph saves = %d, want 1", gr.docs)
	}
}

func TestRunSkipsDuplicate(t *testing.T) {
	deps, emb, _, cat, _ := testDeps(t)
	cat.has = true

	stored, err := Run(context.Background(), deps, Job{Doc: testDoc()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stored.Chunks != 0 {
		t.Errorf("duplicate was re-indexed: %+v", stored)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called for duplicate")
	}
}

func TestRunReplaceDeletesOld(t *testing.T) {
	deps, _, vec, cat, _ := testDeps(t)
	cat.has = true

	stored, err := Run(context.Background(), deps, Job{Doc: testDoc(), Replace: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stored.Chunks == 0 {
		t.Error("replace did not re-index")
	}
	if len(vec.deleted) != 1 || vec.deleted[0] != "rules-2024" {
		t.Errorf("old vectors not deleted: %v", vec.deleted)
	}
	if len(cat.deleted) != 1 {
		t.Errorf("old chunks not deleted: %v", cat.deleted)
	}
}

func TestRunRejectsInvalidDocument(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)

	doc := testDoc()
	doc.ID = ""
	_, err := Run(context.Background(), deps, Job{Doc: doc})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestRunEmbedFailureSurfaces(t *testing.T) {
	deps, emb, vec, _, _ := testDeps(t)
	emb.err = errors.New("model offline")

	_, err := Run(context.Background(), deps, Job{Doc: testDoc()})
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Errorf("err = %v", err)
	}
	if len(vec.upserts) != 0 {
		t.Error("vectors written despite embed failure")
	}
}

func TestRunGraphFailureIsNotFatal(t *testing.T) {
	deps, _, _, _, gr := testDeps(t)
	gr.err = errors.New("neo4j down")

	stored, err := Run(context.Background(), deps, Job{Doc: testDoc()})
	if err != nil {
		t.Fatalf("graph failure sank the pipeline: %v", err)
	}
	if stored.Chunks == 0 {
		t.Error("document not indexed")
	}
}

func TestEmbedBatching(t *testing.T) {
	deps, emb, _, _, _ := testDeps(t)

	// 400 runes of sentence-terminated text with size 100 gives more than
	// EmbedBatchSize/8 chunks but stays in one batch; force many chunks by
	// shrinking the splitter instead.
	splitter, err := chunker.New(chunker.Options{ChunkSize: 10, Overlap: 2})
	if err != nil {
		t.Fatal(err)
	}
	deps.Splitter = splitter

	doc := testDoc()
	doc.Text = strings.Repeat("전력시장 운영규칙 조항이다. ", 40)
	stored, err := Run(context.Background(), deps, Job{Doc: doc})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stored.Chunks <= EmbedBatchSize {
		t.Skipf("only %d chunks, batching not exercised", stored.Chunks)
	}
	want := (stored.Chunks + EmbedBatchSize - 1) / EmbedBatchSize
	if emb.calls != want {
		t.Errorf("embed calls = %d, want %d for %d chunks", emb.calls, want, stored.Chunks)
	}
}
