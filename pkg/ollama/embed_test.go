package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, dims int) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = float64(len(req.Prompt))
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: vec})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestEmbed(t *testing.T) {
	srv, _ := newTestServer(t, 4)
	e, err := New(Options{BaseURL: srv.URL, Model: "nomic-embed-text", Dims: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vec, err := e.Embed(context.Background(), "예비력")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("dims = %d, want 4", len(vec))
	}
}

func TestEmbedEmptyInputSkipsServer(t *testing.T) {
	srv, calls := newTestServer(t, 4)
	e, err := New(Options{BaseURL: srv.URL, Model: "m", Dims: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vec, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("dims = %d, want declared 4", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Errorf("vec[%d] = %v, want 0", i, v)
		}
	}
	if *calls != 0 {
		t.Errorf("server called %d times for empty input", *calls)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv, _ := newTestServer(t, 3)
	e, err := New(Options{BaseURL: srv.URL, Model: "m", Dims: 4})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("want error on dimension mismatch")
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv, calls := newTestServer(t, 2)
	e, err := New(Options{BaseURL: srv.URL, Model: "m", Dims: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	// The stub encodes prompt length into the vector.
	if vecs[0][0] != 1 || vecs[1][0] != 2 || vecs[2][0] != 3 {
		t.Errorf("order not preserved: %v", vecs)
	}
	if *calls != 3 {
		t.Errorf("server calls = %d, want 3", *calls)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Options{Model: "m", Dims: 4}); err == nil {
		t.Error("missing base URL accepted")
	}
	if _, err := New(Options{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Error("zero dims accepted")
	}
}
