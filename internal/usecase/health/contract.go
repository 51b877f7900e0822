package health

import (
	"context"

	"github.com/kailas-cloud/exifdex/internal/domain/search/result"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsReader summarizes the collection once the database answers.
type StatsReader interface {
	Stats(ctx context.Context) (result.Stats, error)
}
