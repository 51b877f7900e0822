// Package keys maintains the index of metadata field names seen across stored documents.
package keys

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/logger"
	"github.com/kailas-cloud/exifdex/internal/metrics"
)

const (
	// DefaultSnapshotKey is where the key list is persisted.
	DefaultSnapshotKey = domain.KeyPrefix + "keys:snapshot"
	// GeneralCategory holds field names without a "Category:" prefix.
	GeneralCategory = "General"
	// DefaultSimilarLimit is the number of suggestions returned by Similar.
	DefaultSimilarLimit = 5
	// SimilarCutoff is the minimum similarity ratio of a suggestion.
	SimilarCutoff = 0.4
)

// Service serves field names from an in-memory snapshot. Readers never block; rebuilds
// are serialized and swap the snapshot wholesale.
type Service struct {
	docs        DocumentReader
	kv          SnapshotStore
	codec       *codec
	snapshotKey string
	now         func() time.Time

	mu    sync.Mutex
	cache atomic.Pointer[snapshot]
}

// New creates a key index. kv may be nil, in which case nothing is persisted.
func New(docs DocumentReader, kv SnapshotStore, compress bool) (*Service, error) {
	c, err := newCodec(compress)
	if err != nil {
		return nil, err
	}
	return &Service{
		docs:        docs,
		kv:          kv,
		codec:       c,
		snapshotKey: DefaultSnapshotKey,
		now:         time.Now,
	}, nil
}

// WithSnapshotKey overrides the persistence key.
func (s *Service) WithSnapshotKey(key string) *Service {
	if key != "" {
		s.snapshotKey = key
	}
	return s
}

// All returns every known field name in lexical order.
func (s *Service) All(ctx context.Context) ([]string, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.Keys), nil
}

// Categories returns the distinct namespaces in lexical order; un-namespaced fields
// count as "General".
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range snap.Keys {
		seen[Category(k)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out, nil
}

// KeysIn returns the field names of one category. A trailing ":" is ignored, so
// "EXIF" and "EXIF:" are the same category.
func (s *Service) KeysIn(ctx context.Context, category string) ([]string, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	category = strings.TrimSuffix(strings.TrimSpace(category), ":")
	out := make([]string, 0)
	for _, k := range snap.Keys {
		if Category(k) == category {
			out = append(out, k)
		}
	}
	return out, nil
}

// Similar suggests up to n known field names close to name, best first.
func (s *Service) Similar(ctx context.Context, name string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSimilarLimit
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return closeMatches(name, snap.Keys, n, SimilarCutoff), nil
}

// Refresh rebuilds the index from the store and persists it.
func (s *Service) Refresh(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.Keys), nil
}

// Invalidate drops the cached and persisted index; the next read rebuilds it.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Store(nil)
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Del(ctx, s.snapshotKey); err != nil {
		return fmt.Errorf("%w: delete key snapshot: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Category returns the namespace of a field name.
func Category(key string) string {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i]
	}
	return GeneralCategory
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	if snap := s.cache.Load(); snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap := s.cache.Load(); snap != nil {
		return snap, nil
	}
	if snap := s.readSnapshot(ctx); snap != nil {
		s.publish(snap, "snapshot")
		return snap, nil
	}
	return s.rebuild(ctx)
}

// rebuild scans every document. Callers hold s.mu.
func (s *Service) rebuild(ctx context.Context) (*snapshot, error) {
	docs, err := s.docs.Find(ctx, filter.MatchAll(), document.Page{})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}

	seen := make(map[string]struct{})
	for _, d := range docs {
		for k := range d {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	snap := &snapshot{Keys: keys, RefreshedAt: s.now().UTC()}
	s.writeSnapshot(ctx, snap)
	s.publish(snap, "scan")
	return snap, nil
}

func (s *Service) publish(snap *snapshot, source string) {
	s.cache.Store(snap)
	metrics.KeyIndexRefreshTotal.WithLabelValues(source).Inc()
	metrics.KeyIndexKeys.Set(float64(len(snap.Keys)))
}

// readSnapshot returns the persisted snapshot, or nil when there is none or it is unreadable.
func (s *Service) readSnapshot(ctx context.Context) *snapshot {
	if s.kv == nil {
		return nil
	}
	data, err := s.kv.Get(ctx, s.snapshotKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			logger.FromContext(ctx).Warn("read key snapshot failed", zap.Error(err))
		}
		return nil
	}
	snap, err := s.codec.decode(data)
	if err != nil {
		logger.FromContext(ctx).Warn("discarding corrupt key snapshot", zap.Error(err))
		return nil
	}
	return snap
}

// writeSnapshot persists snap. Failures only cost a rescan after restart, so they are logged.
func (s *Service) writeSnapshot(ctx context.Context, snap *snapshot) {
	if s.kv == nil {
		return
	}
	data, err := s.codec.encode(snap)
	if err == nil {
		err = s.kv.Set(ctx, s.snapshotKey, data)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("persist key snapshot failed", zap.Error(err))
	}
}
