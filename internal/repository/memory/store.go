// Package memory is an in-process document store for local runs and tests.
// Semantic search is a brute-force cosine scan over stored vectors.
package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// Store keeps documents and small KV blobs in maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	name    string
	entries map[string]document.Entry
	kv      map[string][]byte
}

// New creates an empty store for the named collection.
func New(name string) *Store {
	return &Store{
		name:    name,
		entries: make(map[string]document.Entry),
		kv:      make(map[string][]byte),
	}
}

// Name returns the collection name.
func (s *Store) Name() string { return s.name }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Upsert replaces entries keyed by source path.
func (s *Store) Upsert(_ context.Context, entries []document.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.Doc.ID()] = document.Entry{Doc: e.Doc.Clone(), Vector: slices.Clone(e.Vector)}
	}
	return nil
}

// Find returns matching documents ordered by source path, windowed by page.
func (s *Store) Find(_ context.Context, expr filter.Expression, page document.Page) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []document.Document
	for _, id := range s.sortedIDs() {
		if doc := s.entries[id].Doc; expr.Evaluate(doc) {
			docs = append(docs, doc.Clone())
		}
	}
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	return document.Window(docs, page.Offset, limit), nil
}

// SemanticSearch ranks documents satisfying expr by cosine distance to vector and
// returns the closest limit of them with the distance in the score field.
func (s *Store) SemanticSearch(
	_ context.Context, vector []float32, expr filter.Expression, limit int,
) ([]document.Document, error) {
	if limit <= 0 {
		return []document.Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		doc  document.Document
		dist float64
	}
	var hits []hit
	for _, id := range s.sortedIDs() {
		e := s.entries[id]
		if len(e.Vector) != len(vector) || !expr.Evaluate(e.Doc) {
			continue
		}
		dist, ok := cosineDistance(vector, e.Vector)
		if !ok {
			continue
		}
		hits = append(hits, hit{doc: e.Doc, dist: dist})
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })

	out := make([]document.Document, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		doc := h.doc.Clone()
		doc[document.ScoreField] = value.Float(h.dist)
		out = append(out, doc)
	}
	return out, nil
}

// Count returns the number of documents satisfying expr.
func (s *Store) Count(_ context.Context, expr filter.Expression) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if expr.IsEmpty() {
		return len(s.entries), nil
	}
	n := 0
	for _, e := range s.entries {
		if expr.Evaluate(e.Doc) {
			n++
		}
	}
	return n, nil
}

// AllIDs returns every source path in lexical order.
func (s *Store) AllIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIDs(), nil
}

// Clear drops every document. KV entries are kept.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

// Get returns a KV value or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// GetMulti returns KV values index-aligned with keys; missing keys yield nil.
func (s *Store) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.kv[k]; ok {
			out[i] = slices.Clone(v)
		}
	}
	return out, nil
}

// Set stores a KV value.
func (s *Store) Set(_ context.Context, key string, v []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = slices.Clone(v)
	return nil
}

// Del removes KV entries. Missing keys are ignored.
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.kv, k)
	}
	return nil
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// cosineDistance returns 1 - cos(a, b); zero vectors have no direction.
func cosineDistance(a, b []float32) (float64, bool) {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), true
}
