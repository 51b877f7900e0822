// Package files stores metadata documents as RedisJSON values behind an FT index.
package files

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

const (
	defaultPageSize = 500
	// FT.SEARCH refuses offsets past MAXSEARCHRESULTS (10000 by default).
	maxSearchWindow = 10000
	// Initial KNN over-fetch factor when the pre-filter is only a superset of the
	// filter; K doubles from there until enough neighbours pass the filter.
	overfetch = 3
	// Redis' own EF_RUNTIME default; raised to k for large candidate sets.
	defaultEFRuntime = 10
)

// store is the consumer interface for file documents (ISP).
//
//nolint:interfacebloat // repo needs JSON, keyspace, search and index lifecycle operations
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the query and ingest store contracts on Redis.
type Repo struct {
	store      store
	collection string
	vectorDim  int
	hnsw       HNSWConfig
	pageSize   int
	plan       planner
}

// New creates a files repository for the given collection.
func New(s store, collection string, vectorDim int) *Repo {
	return &Repo{
		store:      s,
		collection: collection,
		vectorDim:  vectorDim,
		hnsw:       HNSWConfig{M: 16, EFConstruct: 200},
		pageSize:   defaultPageSize,
		plan:       newPlanner(nil, nil),
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// WithIndexedFields mirrors the given metadata fields into the index as TAG and NUMERIC
// attributes so filters on them are pushed down to FT.SEARCH.
func (r *Repo) WithIndexedFields(tags, numerics []string) *Repo {
	r.plan = newPlanner(tags, numerics)
	return r
}

// WithPageSize sets how many keys are read or written per round-trip.
func (r *Repo) WithPageSize(n int) *Repo {
	if n > 0 {
		r.pageSize = n
	}
	return r
}

// Name returns the collection name.
func (r *Repo) Name() string { return r.collection }

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return unavailable("index exists", err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.indexName(), r.keyPrefix(), r.vectorDim, r.hnsw, r.plan)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return nil
}

// Upsert writes entries keyed by source path, replacing earlier versions wholesale.
func (r *Repo) Upsert(ctx context.Context, entries []document.Entry) error {
	for start := 0; start < len(entries); start += r.pageSize {
		end := min(start+r.pageSize, len(entries))
		items := make([]db.JSONSetItem, 0, end-start)
		for _, e := range entries[start:end] {
			data, err := marshalStored(e, r.plan)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", e.Doc.ID(), err)
			}
			items = append(items, db.JSONSetItem{Key: r.docKey(e.Doc.ID()), Path: "$", Data: data})
		}
		if err := r.store.JSONSetMulti(ctx, items); err != nil {
			return unavailable("json.set", err)
		}
	}
	return nil
}

// Find returns the documents matching expr, ordered by source path, windowed by page.
// A bounded page over a filter the index answers exactly reads only that page.
func (r *Repo) Find(ctx context.Context, expr filter.Expression, page document.Page) ([]document.Document, error) {
	if page.Limit > 0 {
		query, exact := r.plan.plan(expr)
		switch {
		case exact && query == matchAllQuery:
			return r.scanPage(ctx, page)
		case exact && page.Offset+page.Limit <= maxSearchWindow:
			return r.searchPage(ctx, query, page)
		}
	}

	docs, err := r.collect(ctx, expr)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	return document.Window(docs, page.Offset, limit), nil
}

// SemanticSearch returns up to limit documents nearest to vector that also satisfy expr,
// closest first. Each result carries its cosine distance in the score field.
//
// When the pushed-down pre-filter is only a superset of expr, K starts at an over-fetch
// of limit and doubles until limit neighbours pass expr or the index runs out of
// candidates.
func (r *Repo) SemanticSearch(
	ctx context.Context, vector []float32, expr filter.Expression, limit int,
) ([]document.Document, error) {
	if limit <= 0 {
		return []document.Document{}, nil
	}

	query, exact := r.plan.plan(expr)
	if query == matchAllQuery {
		query = ""
	}
	k := limit
	if !exact {
		k = limit * overfetch
	}

	for {
		sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    r.indexName(),
			Filter:       query,
			Vector:       vector,
			K:            k,
			EFRuntime:    max(k, defaultEFRuntime),
			ReturnFields: []string{"$.meta", "AS", metaField, db.VectorScoreField},
		})
		if err != nil {
			return nil, unavailable("search knn", err)
		}
		if sr == nil {
			return []document.Document{}, nil
		}

		out, err := scoredMatches(sr.Entries, expr)
		if err != nil {
			return nil, err
		}
		if exact || len(out) >= limit || len(sr.Entries) < k {
			return out[:min(limit, len(out))], nil
		}
		k *= 2
	}
}

// scoredMatches decodes KNN hits, keeps those satisfying expr and orders them closest
// first.
func scoredMatches(entries []db.SearchEntry, expr filter.Expression) ([]document.Document, error) {
	out := make([]document.Document, 0, len(entries))
	for _, entry := range entries {
		doc, err := decodeMeta([]byte(entry.Fields[metaField]))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Key, err)
		}
		if !expr.Evaluate(doc) {
			continue
		}
		doc[document.ScoreField] = value.Float(entry.Score)
		out = append(out, doc)
	}

	slices.SortStableFunc(out, func(a, b document.Document) int {
		sa, _ := a[document.ScoreField].AsFloat()
		sb, _ := b[document.ScoreField].AsFloat()
		return cmp.Compare(sa, sb)
	})
	return out, nil
}

// Count returns the number of documents matching expr.
func (r *Repo) Count(ctx context.Context, expr filter.Expression) (int, error) {
	query, exact := r.plan.plan(expr)
	if exact {
		n, err := r.store.SearchCount(ctx, r.indexName(), query)
		if err != nil {
			return 0, unavailable("search count", err)
		}
		return n, nil
	}
	docs, err := r.collect(ctx, expr)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// AllIDs returns every stored source path in lexical order.
func (r *Repo) AllIDs(ctx context.Context) ([]string, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, r.keyPrefix())
	}
	return ids, nil
}

// Clear removes every document and recreates an empty index. Dropping with DD deletes
// the indexed keys server-side; the sweep catches keys the index never covered, such as
// writes from before the index existed.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName(), true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return unavailable("drop index", err)
	}

	keys, err := r.scanKeys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += r.pageSize {
		end := min(start+r.pageSize, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return unavailable("del", err)
		}
	}

	return r.EnsureIndex(ctx)
}

// collect fetches every document matching expr. The pushed-down query narrows the
// candidates; expr is then applied in full.
func (r *Repo) collect(ctx context.Context, expr filter.Expression) ([]document.Document, error) {
	query, _ := r.plan.plan(expr)

	var (
		docs []document.Document
		err  error
	)
	if query == matchAllQuery {
		docs, err = r.scanAll(ctx)
	} else {
		docs, err = r.searchAll(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	docs = slices.DeleteFunc(docs, func(d document.Document) bool { return !expr.Evaluate(d) })
	slices.SortFunc(docs, func(a, b document.Document) int { return strings.Compare(a.ID(), b.ID()) })
	return docs, nil
}

func (r *Repo) scanKeys(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return nil, unavailable("scan", err)
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func (r *Repo) scanAll(ctx context.Context) ([]document.Document, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, keys)
}

// scanPage reads only the keys inside page. SCAN cannot skip, so the key list is still
// complete; documents are not.
func (r *Repo) scanPage(ctx context.Context, page document.Page) ([]document.Document, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if page.Offset >= len(keys) {
		return []document.Document{}, nil
	}
	keys = keys[page.Offset:]
	return r.fetch(ctx, keys[:min(page.Limit, len(keys))])
}

// fetch reads the meta of keys in pages, preserving their order.
func (r *Repo) fetch(ctx context.Context, keys []string) ([]document.Document, error) {
	docs := make([]document.Document, 0, len(keys))
	for start := 0; start < len(keys); start += r.pageSize {
		end := min(start+r.pageSize, len(keys))
		raws, err := r.store.JSONMGet(ctx, keys[start:end], "$.meta")
		if err != nil {
			return nil, unavailable("json.mget", err)
		}
		for i, raw := range raws {
			if raw == nil {
				continue // deleted between SCAN and MGET
			}
			doc, err := decodeMeta(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", keys[start+i], err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// searchPage lets FT.SEARCH sort by source path and cut the window server-side.
func (r *Repo) searchPage(ctx context.Context, query string, page document.Page) ([]document.Document, error) {
	sr, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName:    r.indexName(),
		Query:        query,
		Offset:       page.Offset,
		Limit:        page.Limit,
		SortBy:       idAlias,
		ReturnFields: []string{"$.meta", "AS", metaField},
	})
	if err != nil {
		return nil, unavailable("search list", err)
	}
	if sr == nil {
		return []document.Document{}, nil
	}
	return decodeEntries(sr.Entries)
}

func (r *Repo) searchAll(ctx context.Context, query string) ([]document.Document, error) {
	var docs []document.Document

	for offset := 0; ; offset += r.pageSize {
		sr, err := r.store.SearchList(ctx, &db.ListQuery{
			IndexName:    r.indexName(),
			Query:        query,
			Offset:       offset,
			Limit:        r.pageSize,
			ReturnFields: []string{"$.meta", "AS", metaField},
		})
		if err != nil {
			return nil, unavailable("search list", err)
		}
		if sr == nil {
			break
		}
		if sr.Total > maxSearchWindow {
			return r.scanAll(ctx)
		}
		page, err := decodeEntries(sr.Entries)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
		if len(sr.Entries) == 0 || offset+r.pageSize >= sr.Total {
			break
		}
	}
	return docs, nil
}

func decodeEntries(entries []db.SearchEntry) ([]document.Document, error) {
	docs := make([]document.Document, 0, len(entries))
	for _, entry := range entries {
		doc, err := decodeMeta([]byte(entry.Fields[metaField]))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Key, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *Repo) keyPrefix() string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, r.collection)
}

func (r *Repo) docKey(id string) string {
	return r.keyPrefix() + id
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, r.collection)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
