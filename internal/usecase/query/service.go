// Package query runs aggregation pipelines and the convenience queries built on them.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/pipeline"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/search/mode"
	"github.com/kailas-cloud/exifdex/internal/domain/search/request"
	"github.com/kailas-cloud/exifdex/internal/domain/search/result"
	"github.com/kailas-cloud/exifdex/internal/logger"
	"github.com/kailas-cloud/exifdex/internal/metrics"
)

const (
	// DefaultSemanticCap bounds the candidates fetched for a semantic $match,
	// a sorted semantic query and a semantic GroupBy.
	DefaultSemanticCap = 2000
	// DefaultCountCap bounds the candidates counted for a semantic Count.
	DefaultCountCap = 1000
)

// Service executes pipelines against the store.
type Service struct {
	store       Store
	embed       Embedder
	semanticCap int
	countCap    int
}

// New creates a query service. embed may be nil; semantic queries then fail with
// domain.ErrNotImplemented.
func New(store Store, embed Embedder) *Service {
	return &Service{
		store:       store,
		embed:       embed,
		semanticCap: DefaultSemanticCap,
		countCap:    DefaultCountCap,
	}
}

// WithSemanticCap overrides the semantic candidate cap.
func (s *Service) WithSemanticCap(n int) *Service {
	if n > 0 {
		s.semanticCap = n
	}
	return s
}

// WithCountCap overrides the semantic count cap.
func (s *Service) WithCountCap(n int) *Service {
	if n > 0 {
		s.countCap = n
	}
	return s
}

// Aggregate parses a JSON pipeline and runs it.
func (s *Service) Aggregate(ctx context.Context, data []byte) ([]document.Document, error) {
	p, err := pipeline.Parse(data)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}
	return s.Run(ctx, p)
}

// Run executes a parsed pipeline. A leading $match is handed to the store; every other
// stage runs in memory over the seeded documents.
func (s *Service) Run(ctx context.Context, p pipeline.Pipeline) (docs []document.Document, err error) {
	ctx = logger.With(ctx, zap.String("collection", s.store.Name()), zap.Int("stages", len(p)))
	defer func() {
		switch {
		case err == nil:
			metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
		case errors.Is(err, domain.ErrMalformedPipeline):
			metrics.PipelineRunsTotal.WithLabelValues("malformed").Inc()
		default:
			metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		}
	}()

	if err = p.Validate(); err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return []document.Document{}, nil
	}

	rest := p
	if m, ok := p[0].(pipeline.Match); ok {
		if m.Semantic() {
			docs, err = s.semantic(ctx, m.Query, m.Filter, s.semanticCap)
		} else {
			docs, err = s.find(ctx, m.Filter, document.Page{})
		}
		rest = p[1:]
	} else {
		logger.FromContext(ctx).Warn("pipeline has no leading $match, fetching whole collection",
			zap.Stringer("first_stage", p[0].Kind()),
		)
		metrics.PipelineFullScansTotal.Inc()
		docs, err = s.find(ctx, filter.MatchAll(), document.Page{})
	}
	if err != nil {
		return nil, err
	}
	metrics.PipelineSeedDocuments.Observe(float64(len(docs)))

	for _, st := range rest {
		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		start := time.Now()
		docs = st.Apply(docs)
		metrics.PipelineStageDuration.WithLabelValues(st.Kind().String()).Observe(time.Since(start).Seconds())
	}
	return docs, nil
}

// Query returns up to n documents: nearest matches when the criteria carry semantic text,
// otherwise filter matches in source path order. Empty criteria select nothing.
func (s *Service) Query(ctx context.Context, c request.Criteria, n int) ([]document.Document, error) {
	if n <= 0 || c.IsEmpty() {
		return []document.Document{}, nil
	}
	return s.match(ctx, c.Query(), c.Filter(), n)
}

// AdvancedQuery runs the equivalent of [$match, $sort?, $skip, $limit, $project?],
// pushing as much as the retrieval mode allows down to the store.
func (s *Service) AdvancedQuery(ctx context.Context, q request.Advanced) ([]document.Document, error) {
	if q.Limit() == 0 {
		return []document.Document{}, nil
	}

	var (
		docs []document.Document
		err  error
	)
	switch q.Mode() {
	case mode.Paged:
		docs, err = s.find(ctx, q.Filter(), document.Page{Offset: q.Offset(), Limit: q.Limit()})
	case mode.SortedExact:
		docs, err = s.find(ctx, q.Filter(), document.Page{})
	case mode.SortedSemantic:
		docs, err = s.semantic(ctx, q.Query(), q.Filter(), s.semanticCap)
	case mode.Semantic:
		docs, err = s.semantic(ctx, q.Query(), q.Filter(), q.Offset()+q.Limit())
	default:
		return nil, fmt.Errorf("unsupported query mode: %s", q.Mode())
	}
	if err != nil {
		return nil, err
	}

	if q.Mode() != mode.Paged {
		if q.SortBy() != "" {
			docs = pipeline.Sort{Keys: []pipeline.SortKey{{Field: q.SortBy(), Desc: q.Desc()}}}.Apply(docs)
		}
		docs = document.Window(docs, q.Offset(), q.Limit())
	}

	if len(q.Projection()) > 0 {
		docs = projection(q.Projection()).Apply(docs)
	}
	return docs, nil
}

// Count returns how many documents the criteria select. Semantic criteria count the
// nearest matches up to the count cap.
func (s *Service) Count(ctx context.Context, c request.Criteria) (int, error) {
	if c.Semantic() {
		docs, err := s.semantic(ctx, c.Query(), c.Filter(), s.countCap)
		if err != nil {
			return 0, err
		}
		return len(docs), nil
	}
	n, err := s.store.Count(ctx, c.Filter())
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// GroupBy counts the selected documents per stringified value of field. Documents that
// lack the field land in the "Unknown" bucket.
func (s *Service) GroupBy(ctx context.Context, field string, c request.Criteria) ([]result.Bucket, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: group field is required", domain.ErrInvalidRequest)
	}

	var (
		docs []document.Document
		err  error
	)
	if c.Semantic() {
		docs, err = s.semantic(ctx, c.Query(), c.Filter(), s.semanticCap)
	} else {
		docs, err = s.find(ctx, c.Filter(), document.Page{})
	}
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, d := range docs {
		key := result.UnknownBucket
		if v, ok := d.Get(field); ok && !v.IsNull() {
			key = v.String()
		}
		counts[key]++
	}
	return result.Buckets(counts), nil
}

// Stats summarizes the collection.
func (s *Service) Stats(ctx context.Context) (result.Stats, error) {
	n, err := s.store.Count(ctx, filter.MatchAll())
	if err != nil {
		return result.Stats{}, fmt.Errorf("count: %w", err)
	}
	return result.Stats{TotalFiles: n, CollectionName: s.store.Name()}, nil
}

// match retrieves from the store: semantic search when text is set, exact match otherwise.
func (s *Service) match(
	ctx context.Context, text string, expr filter.Expression, limit int,
) ([]document.Document, error) {
	if text != "" {
		return s.semantic(ctx, text, expr, limit)
	}
	return s.find(ctx, expr, document.Page{Limit: limit})
}

func (s *Service) find(ctx context.Context, expr filter.Expression, page document.Page) ([]document.Document, error) {
	docs, err := s.store.Find(ctx, expr, page)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return docs, nil
}

// semantic embeds text and runs a nearest-neighbor search pre-filtered by expr.
func (s *Service) semantic(
	ctx context.Context, text string, expr filter.Expression, limit int,
) ([]document.Document, error) {
	if s.embed == nil {
		return nil, fmt.Errorf("semantic search: %w", domain.ErrNotImplemented)
	}

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	docs, err := s.store.SemanticSearch(ctx, emb.Embedding, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return docs, nil
}

// projection keeps the requested fields and always the source path.
func projection(fields []string) pipeline.Project {
	p := pipeline.Project{Fields: []pipeline.ProjectField{{Field: document.IDField, Action: pipeline.ProjectInclude}}}
	for _, f := range fields {
		if f == document.IDField {
			continue
		}
		p.Fields = append(p.Fields, pipeline.ProjectField{Field: f, Action: pipeline.ProjectInclude})
	}
	return p
}
