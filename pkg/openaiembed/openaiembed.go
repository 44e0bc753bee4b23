// Package openaiembed provides an OpenAI-backed embedder as an alternative
// to the local Ollama model. Batching goes through the API's native
// multi-input support instead of one request per text.
package openaiembed

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// New creates an OpenAI embedder. baseURL is optional and supports
// OpenAI-compatible endpoints.
func New(apiKey, baseURL, model string, dims int) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openaiembed: api key is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("openaiembed: declared dimension must be positive, got %d", dims)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &Embedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
		dims:   dims,
	}, nil
}

// Dims returns the declared embedding dimension.
func (e *Embedder) Dims() int { return e.dims }

// ModelID identifies the backing model.
func (e *Embedder) ModelID() string { return string(e.model) }

// Embed returns the embedding for text, or a zero vector for blank input.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one API call, preserving order. Blank inputs
// become zero vectors without being sent.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	input := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make([]float32, e.dims)
			continue
		}
		input = append(input, text)
		positions = append(positions, i)
	}
	if len(input) == 0 {
		return out, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("openaiembed: create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("openaiembed: got %d embeddings for %d inputs", len(resp.Data), len(input))
	}

	for j, d := range resp.Data {
		if len(d.Embedding) != e.dims {
			return nil, fmt.Errorf("openaiembed: model returned %d dims, declared %d", len(d.Embedding), e.dims)
		}
		out[positions[j]] = d.Embedding
	}
	return out, nil
}
