package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kpxlab/marketrag/pkg/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleAskRejectsBadRequests(t *testing.T) {
	h := handleAsk(nil, metrics.New(), discardLogger())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{nope"},
		{"missing question", `{}`},
		{"unknown method", `{"question":"예비력","method":"fuzzy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleSearchRejectsUnknownMethod(t *testing.T) {
	h := handleSearch(nil, discardLogger())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/api/search", strings.NewReader(`{"query":"예비력","method":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" || cfg.Collection != "marketrag" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.Provider)
	}
	if cfg.ChunkSize != 1000 || cfg.Overlap != 200 {
		t.Errorf("chunking defaults = %d/%d", cfg.ChunkSize, cfg.Overlap)
	}

	t.Setenv("PORT", "9000")
	t.Setenv("EMBED_DIMS", "384")
	cfg = loadConfig()
	if cfg.Port != "9000" || cfg.EmbedDims != 384 {
		t.Errorf("env override = %+v", cfg)
	}
}
