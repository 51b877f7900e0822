package exifdex

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type brandEmbedder struct{ batches int }

func (e *brandEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	return EmbeddingResult{Embedding: vectorFor(text), PromptTokens: 2, TotalTokens: 2}, nil
}

func (e *brandEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batches++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = vectorFor(t)
		out.TotalTokens += 2
	}
	return out, nil
}

func vectorFor(text string) []float32 {
	switch t := strings.ToLower(text); {
	case strings.Contains(t, "apple"):
		return []float32{1, 0}
	case strings.Contains(t, "canon"):
		return []float32{0, 1}
	default:
		return []float32{1, 1}
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(context.Background(), append([]Option{WithMemory()}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	_, err = c.Upsert(context.Background(),
		map[string]any{"SourceFile": "/photos/c.jpg", "EXIF:Make": "Canon", "EXIF:ISO": 400, "File:FileType": "JPEG"},
		map[string]any{"SourceFile": "/photos/a.jpg", "EXIF:Make": "Apple", "EXIF:ISO": 100, "File:FileType": "JPEG"},
		map[string]any{"SourceFile": "/photos/b.jpg", "EXIF:Make": "Apple", "EXIF:ISO": 200, "File:FileType": "HEIC"},
	)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return c
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

func TestNew_RequiresStorage(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error without a driver")
	}
}

func TestUpsert_Report(t *testing.T) {
	c, err := New(context.Background(), WithMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	rep, err := c.Upsert(context.Background(),
		map[string]any{"SourceFile": "/x.jpg"},
		map[string]any{"EXIF:Make": "Nikon"},
		map[string]any{"SourceFile": "/x.jpg", "EXIF:Make": "Sony"},
	)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0].Index != 1 {
		t.Fatalf("skipped = %+v", rep.Skipped)
	}
	if !errors.Is(rep.Skipped[0].Reason, ErrInvalidRequest) {
		t.Errorf("reason = %v", rep.Skipped[0].Reason)
	}

	docs, err := c.Search(context.Background(), Criteria{Where: map[string]any{"SourceFile": "/x.jpg"}}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0]["EXIF:Make"] != "Sony" {
		t.Errorf("last record should win, got %v", docs)
	}
}

func TestIDsAndClear(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	got, err := c.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	if want := []string{"/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := c.Count(ctx, Criteria{}); n != 0 {
		t.Errorf("count after clear = %d", n)
	}
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, WithEmbedder(&brandEmbedder{}))
	ctx := context.Background()

	tests := []struct {
		name string
		crit Criteria
		n    int
		want []string
	}{
		{"filter", Criteria{Where: map[string]any{"EXIF:Make": "Apple"}}, 10, []string{"/photos/a.jpg", "/photos/b.jpg"}},
		{"operator", Criteria{Where: map[string]any{"EXIF:ISO": map[string]any{"$gte": 200}}}, 10, []string{"/photos/b.jpg", "/photos/c.jpg"}},
		{"semantic", Criteria{Query: "a canon camera"}, 1, []string{"/photos/c.jpg"}},
		{"semantic with filter", Criteria{Query: "canon", Where: map[string]any{"File:FileType": "HEIC"}}, 3, []string{"/photos/b.jpg"}},
		{"empty criteria", Criteria{}, 10, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Search(ctx, tt.crit, tt.n)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := ids(docs); !slices.Equal(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearch_NativeValues(t *testing.T) {
	c := newTestClient(t)
	docs, err := c.Search(context.Background(), Criteria{Where: map[string]any{"SourceFile": "/photos/c.jpg"}}, 1)
	if err != nil || len(docs) != 1 {
		t.Fatalf("Search: %v %v", docs, err)
	}
	if iso, ok := docs[0]["EXIF:ISO"].(int64); !ok || iso != 400 {
		t.Errorf("EXIF:ISO = %#v, want int64(400)", docs[0]["EXIF:ISO"])
	}
}

func TestSearch_SemanticWithoutEmbedder(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Search(context.Background(), Criteria{Query: "apple"}, 3)
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestSearch_InvalidFilter(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Search(context.Background(), Criteria{Where: map[string]any{"$and": "EXIF:ISO"}}, 3)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	c := newTestClient(t)

	docs, err := c.Query(context.Background(), AdvancedQuery{
		SortBy:     "EXIF:ISO",
		SortOrder:  "desc",
		Limit:      2,
		Projection: []string{"SourceFile", "EXIF:ISO"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := ids(docs); !slices.Equal(got, []string{"/photos/c.jpg", "/photos/b.jpg"}) {
		t.Errorf("ids = %v", got)
	}
	if _, ok := docs[0]["EXIF:Make"]; ok {
		t.Error("projection should drop EXIF:Make")
	}

	if _, err := c.Query(context.Background(), AdvancedQuery{SortOrder: "sideways", Limit: 1}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAggregate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	docs, err := c.Aggregate(ctx,
		Stage{"$match": map[string]any{"EXIF:Make": "Apple"}},
		Stage{"$sort": map[string]any{"EXIF:ISO": -1}},
		Stage{"$limit": 1},
	)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := ids(docs); !slices.Equal(got, []string{"/photos/b.jpg"}) {
		t.Errorf("ids = %v", got)
	}

	if _, err := c.AggregateJSON(ctx, []byte(`{"$limit": 1}`)); !errors.Is(err, ErrMalformedPipeline) {
		t.Errorf("expected ErrMalformedPipeline, got %v", err)
	}
}

func TestCountGroupByStats(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	n, err := c.Count(ctx, Criteria{Where: map[string]any{"File:FileType": "JPEG"}})
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}

	buckets, err := c.GroupBy(ctx, "EXIF:Make", Criteria{})
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	want := []Bucket{{Value: "Apple", Count: 2}, {Value: "Canon", Count: 1}}
	if !slices.Equal(buckets, want) {
		t.Errorf("buckets = %v, want %v", buckets, want)
	}

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalFiles != 3 || st.CollectionName != "files" {
		t.Errorf("stats = %+v", st)
	}
}

func TestKeys(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	cats, err := c.KeyCategories(ctx)
	if err != nil {
		t.Fatalf("KeyCategories: %v", err)
	}
	if !slices.Contains(cats, "EXIF") || !slices.Contains(cats, "File") {
		t.Errorf("categories = %v", cats)
	}

	keys, err := c.Keys(ctx, "EXIF")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if !slices.Equal(keys, []string{"EXIF:ISO", "EXIF:Make"}) {
		t.Errorf("EXIF keys = %v", keys)
	}

	similar, err := c.SimilarKeys(ctx, "EXIF:Mke", 1)
	if err != nil {
		t.Fatalf("SimilarKeys: %v", err)
	}
	if !slices.Equal(similar, []string{"EXIF:Make"}) {
		t.Errorf("similar = %v", similar)
	}

	_, _ = c.Upsert(ctx, map[string]any{"SourceFile": "/photos/d.jpg", "XMP:Rating": 5})
	all, err := c.RefreshKeys(ctx)
	if err != nil {
		t.Fatalf("RefreshKeys: %v", err)
	}
	if !slices.Contains(all, "XMP:Rating") {
		t.Errorf("refresh should pick up XMP:Rating, got %v", all)
	}
}

func TestHealthAndPing(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	h := c.Health(ctx)
	if !h.OK() || h.Checks["database"] != "ok" || h.Version == "" {
		t.Errorf("health = %+v", h)
	}
	if h.Stats == nil || h.Stats.TotalFiles != 3 {
		t.Errorf("stats = %+v", h.Stats)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, WithPrometheus(reg))
	ctx := context.Background()

	_, _ = c.Count(ctx, Criteria{})
	_, _ = c.Search(ctx, Criteria{Query: "apple"}, 1)

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("upsert", "ok")); got != 1 {
		t.Errorf("upsert ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("count", "ok")); got != 1 {
		t.Errorf("count ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("search error = %v, want 1", got)
	}

	// A second client on the same registry reuses the collectors.
	again, err := New(ctx, WithMemory(), WithPrometheus(reg))
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	defer again.Close()
	if again.obs.metrics.operations != ops {
		t.Error("expected the registered counter to be reused")
	}
}

func TestBatchEmbedderIsUsed(t *testing.T) {
	emb := &brandEmbedder{}
	_ = newTestClient(t, WithEmbedder(emb), WithBatchSize(2))
	if emb.batches != 2 {
		t.Errorf("batches = %d, want 2", emb.batches)
	}
}
