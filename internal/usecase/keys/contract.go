package keys

import (
	"context"

	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
)

// DocumentReader lists stored documents for a rebuild.
type DocumentReader interface {
	Find(ctx context.Context, expr filter.Expression, page document.Page) ([]document.Document, error)
}

// SnapshotStore persists the key list between restarts.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
}
