package query

import (
	"context"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
)

// Store defines the read side of the document store.
type Store interface {
	Name() string
	Find(ctx context.Context, expr filter.Expression, page document.Page) ([]document.Document, error)
	SemanticSearch(ctx context.Context, vector []float32, expr filter.Expression, limit int) ([]document.Document, error)
	Count(ctx context.Context, expr filter.Expression) (int, error)
}

// Embedder vectorizes semantic query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
