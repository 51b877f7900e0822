// Package ingest stores extracted metadata records and their embeddings.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/domain"
	dombatch "github.com/kailas-cloud/exifdex/internal/domain/batch"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/logger"
)

// DefaultBatchSize is the number of records embedded and stored per round-trip.
const DefaultBatchSize = 100

// Service handles record ingestion with per-record outcome reporting.
type Service struct {
	store     Store
	embed     Embedder
	keys      KeyIndex
	batchSize int
}

// New creates an ingest service. embed may be nil: records are then stored without
// vectors and only exact queries will find them.
func New(store Store, embed Embedder) *Service {
	return &Service{store: store, embed: embed, batchSize: DefaultBatchSize}
}

// WithBatchSize configures the embedding/storage batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// WithKeyIndex registers the key index to invalidate on Clear.
func (s *Service) WithKeyIndex(k KeyIndex) *Service {
	s.keys = k
	return s
}

// Upsert stores records keyed by SourceFile, replacing earlier versions. Records without
// a SourceFile are skipped; when a request repeats a SourceFile the last record wins.
// A failed batch aborts the call; batches stored before it remain.
func (s *Service) Upsert(ctx context.Context, records []map[string]any) (dombatch.Report, error) {
	results := make([]dombatch.Result, len(records))
	docs := make([]document.Document, len(records))
	last := make(map[string]int, len(records))

	for i, rec := range records {
		doc := document.FromRecord(rec)
		id := doc.ID()
		if id == "" {
			results[i] = dombatch.NewSkipped(i, "", fmt.Errorf("%w: record has no SourceFile", domain.ErrInvalidRequest))
			continue
		}
		if prev, ok := last[id]; ok {
			results[prev] = dombatch.NewSkipped(prev, id, fmt.Errorf("%w: superseded by record %d", domain.ErrInvalidRequest, i))
		}
		last[id] = i
		docs[i] = doc
	}

	pending := make([]int, 0, len(last))
	for i := range records {
		if id := docs[i].ID(); id != "" && last[id] == i {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += s.batchSize {
		chunk := pending[start:min(start+s.batchSize, len(pending))]
		if err := s.storeBatch(ctx, docs, chunk); err != nil {
			return dombatch.Report{}, err
		}
		for _, i := range chunk {
			results[i] = dombatch.NewOK(i, docs[i].ID())
		}
	}

	report := dombatch.Report{Results: results}
	logger.FromContext(ctx).Info("records ingested",
		zap.Int("received", len(records)),
		zap.Int("stored", report.Count(dombatch.StatusOK)),
		zap.Int("skipped", report.Count(dombatch.StatusSkipped)),
	)
	return report, nil
}

// storeBatch embeds and stores one batch of records, identified by their positions in docs.
func (s *Service) storeBatch(ctx context.Context, docs []document.Document, chunk []int) error {
	entries := make([]document.Entry, len(chunk))
	for j, i := range chunk {
		entries[j] = document.Entry{Doc: docs[i]}
	}

	if s.embed != nil {
		texts := make([]string, len(entries))
		for j := range entries {
			texts[j] = document.Describe(entries[j].Doc)
		}
		vectors, err := s.vectorize(ctx, texts)
		if err != nil {
			return err
		}
		for j := range entries {
			entries[j].Vector = vectors[j]
		}
	}

	if err := s.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (s *Service) vectorize(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("vectorize: got %d embeddings for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embeddings, nil
}

// ExistingIDs returns the source paths already stored, for incremental scans.
func (s *Service) ExistingIDs(ctx context.Context) ([]string, error) {
	ids, err := s.store.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

// Clear removes every document and resets the key index.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if s.keys != nil {
		if err := s.keys.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidate key index: %w", err)
		}
	}
	logger.FromContext(ctx).Info("collection cleared")
	return nil
}
