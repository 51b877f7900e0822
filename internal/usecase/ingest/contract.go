package ingest

import (
	"context"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
)

// Store defines the write side of the document store.
type Store interface {
	Upsert(ctx context.Context, entries []document.Entry) error
	AllIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Embedder vectorizes document descriptions. Implementations that also satisfy
// domain.BatchEmbedder are called once per batch.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// KeyIndex is told when the collection is wiped.
type KeyIndex interface {
	Invalidate(ctx context.Context) error
}
