package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by embedders that vectorize many texts per provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is one vector plus the tokens the provider billed for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors index-aligned with the input texts.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll vectorizes texts with one BatchEmbed call when e supports it, and one Embed
// call per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return EmbedEach(ctx, e, texts)
}

// EmbedEach calls Embed once per text and sums token usage.
func EmbedEach(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// WithPrefix returns an embedder that prepends prefix to every text before passing it
// on. Asymmetric models want different prefixes for indexed documents and for queries.
// An empty prefix returns inner unchanged.
func WithPrefix(inner Embedder, prefix string) Embedder {
	if prefix == "" {
		return inner
	}
	return &prefixEmbedder{inner: inner, prefix: prefix}
}

type prefixEmbedder struct {
	inner  Embedder
	prefix string
}

func (p *prefixEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := p.inner.Embed(ctx, p.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prefixed embed: %w", err)
	}
	return res, nil
}

func (p *prefixEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = p.prefix + t
	}
	res, err := EmbedAll(ctx, p.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("prefixed batch embed: %w", err)
	}
	return res, nil
}
