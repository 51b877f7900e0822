// Package health reports the availability of the document store and embedding provider.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/domain/search/result"
	"github.com/kailas-cloud/exifdex/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that queries work but semantic search does not.
	Degraded Status = "degraded"
	// Unhealthy indicates the document store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	CheckDatabase  = "database"
	CheckEmbedding = "embedding"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results. Stats is set only when the database answered.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Stats  *result.Stats
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	stats     StatsReader
	timeout   time.Duration
}

// New creates a Service. embedding and stats can be nil.
func New(db DBPinger, embedding EmbeddingChecker, stats StatsReader) *Service {
	return &Service{db: db, embedding: embedding, stats: stats, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-component probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes every component. A database failure makes the service unhealthy; an
// embedding failure only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if err := s.probe(ctx, CheckDatabase, s.db.Ping); err != nil {
		r.Checks[CheckDatabase] = CheckError
		r.Status = Unhealthy
	} else {
		r.Checks[CheckDatabase] = CheckOK
		r.Stats = s.readStats(ctx)
	}

	if s.embedding != nil {
		if err := s.probe(ctx, CheckEmbedding, s.embedding.HealthCheck); err != nil {
			r.Checks[CheckEmbedding] = CheckError
			if r.Status == Healthy {
				r.Status = Degraded
			}
		} else {
			r.Checks[CheckEmbedding] = CheckOK
		}
	}

	return r
}

func (s *Service) probe(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("health check failed", zap.String("component", name), zap.Error(err))
	}
	return err
}

func (s *Service) readStats(ctx context.Context) *result.Stats {
	if s.stats == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.stats.Stats(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("health stats failed", zap.Error(err))
		return nil
	}
	return &st
}
