package keys

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/metrics"
	"github.com/kailas-cloud/exifdex/internal/repository/memory"
)

// --- Mocks ---

type mockDocs struct {
	mu    sync.Mutex
	docs  []document.Document
	err   error
	scans int
}

func (m *mockDocs) Find(_ context.Context, _ filter.Expression, _ document.Page) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	return m.docs, m.err
}

func (m *mockDocs) add(d document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, d)
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Set(context.Context, string, []byte) error   { return f.err }
func (f failingKV) Del(context.Context, ...string) error        { return f.err }

func fixtures() *mockDocs {
	return &mockDocs{docs: []document.Document{
		document.FromRecord(map[string]any{"SourceFile": "a.jpg", "EXIF:Model": "iPhone", "IPTC:Keywords": "test"}),
		document.FromRecord(map[string]any{"SourceFile": "b.jpg", "EXIF:ISO": 100, "General": "Info"}),
		document.FromRecord(map[string]any{"SourceFile": "c.jpg", "XMP:Title": "Title"}),
	}}
}

func newTestService(t *testing.T, docs DocumentReader, kv SnapshotStore, compress bool) *Service {
	t.Helper()
	svc, err := New(docs, kv, compress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestCategories(t *testing.T) {
	svc := newTestService(t, fixtures(), memory.New("files"), true)

	got, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"EXIF", "General", "IPTC", "XMP"}
	if !slices.Equal(got, want) {
		t.Errorf("categories = %v, want %v", got, want)
	}
}

func TestKeysIn(t *testing.T) {
	tests := []struct {
		category string
		want     []string
	}{
		{"EXIF", []string{"EXIF:ISO", "EXIF:Model"}},
		{"EXIF:", []string{"EXIF:ISO", "EXIF:Model"}},
		{"General", []string{"General", "SourceFile"}},
		{"MakerNotes", []string{}},
	}
	svc := newTestService(t, fixtures(), nil, false)
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got, err := svc.KeysIn(context.Background(), tt.category)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("KeysIn(%q) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestAll_CachedUntilRefresh(t *testing.T) {
	docs := fixtures()
	svc := newTestService(t, docs, nil, false)
	ctx := context.Background()

	if _, err := svc.All(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs.add(document.FromRecord(map[string]any{"SourceFile": "d.jpg", "NewCat:Key": "Value"}))

	cats, _ := svc.Categories(ctx)
	if slices.Contains(cats, "NewCat") {
		t.Error("stale cache should not see NewCat before refresh")
	}
	if docs.scans != 1 {
		t.Errorf("scans = %d, want 1", docs.scans)
	}

	keys, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !slices.Contains(keys, "NewCat:Key") {
		t.Errorf("refreshed keys = %v, want NewCat:Key", keys)
	}
	cats, _ = svc.Categories(ctx)
	if !slices.Contains(cats, "NewCat") {
		t.Errorf("categories after refresh = %v, want NewCat", cats)
	}
}

func TestSnapshot_ReusedAcrossInstances(t *testing.T) {
	for _, compress := range []bool{true, false} {
		kv := memory.New("files")
		ctx := context.Background()

		first := newTestService(t, fixtures(), kv, compress)
		if _, err := first.All(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		raw, err := kv.Get(ctx, DefaultSnapshotKey)
		if err != nil {
			t.Fatalf("snapshot not persisted: %v", err)
		}
		if got := bytes.HasPrefix(raw, zstdMagic); got != compress {
			t.Errorf("compress=%v: zstd frame = %v", compress, got)
		}

		docs := fixtures()
		second := newTestService(t, docs, kv, !compress)
		keys, err := second.All(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs.scans != 0 {
			t.Errorf("compress=%v: scans = %d, want snapshot to be used", compress, docs.scans)
		}
		if !slices.Contains(keys, "EXIF:Model") {
			t.Errorf("compress=%v: keys = %v", compress, keys)
		}
	}
}

func TestSnapshot_OverridesStore(t *testing.T) {
	kv := memory.New("files")
	ctx := context.Background()
	svc := newTestService(t, fixtures(), kv, false)

	_ = kv.Set(ctx, DefaultSnapshotKey, []byte(`{"keys":["Fake:Model"]}`))

	got, err := svc.Similar(ctx, "Model", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []string{"Fake:Model"}) {
		t.Errorf("similar = %v, want [Fake:Model]", got)
	}
}

func TestSnapshot_CorruptIsRebuilt(t *testing.T) {
	kv := memory.New("files")
	ctx := context.Background()
	_ = kv.Set(ctx, DefaultSnapshotKey, append(slices.Clone(zstdMagic), 0x00, 0x01))

	docs := fixtures()
	svc := newTestService(t, docs, kv, true)
	keys, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs.scans != 1 || len(keys) != 6 {
		t.Errorf("scans = %d, keys = %v", docs.scans, keys)
	}
}

func TestSnapshot_StoreFailureFallsBackToScan(t *testing.T) {
	docs := fixtures()
	svc := newTestService(t, docs, failingKV{err: errors.New("connection refused")}, true)

	keys, err := svc.All(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 6 {
		t.Errorf("keys = %v", keys)
	}
}

func TestInvalidate(t *testing.T) {
	kv := memory.New("files")
	docs := fixtures()
	svc := newTestService(t, docs, kv, true)
	ctx := context.Background()

	_, _ = svc.All(ctx)
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := kv.Get(ctx, DefaultSnapshotKey); err == nil {
		t.Error("snapshot should be deleted")
	}
	_, _ = svc.All(ctx)
	if docs.scans != 2 {
		t.Errorf("scans = %d, want 2", docs.scans)
	}
}

func TestInvalidate_StoreError(t *testing.T) {
	svc := newTestService(t, fixtures(), failingKV{err: errors.New("boom")}, false)

	if err := svc.Invalidate(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestScanError(t *testing.T) {
	docs := &mockDocs{err: domain.ErrStoreUnavailable}
	svc := newTestService(t, docs, nil, false)

	if _, err := svc.Categories(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if svc.cache.Load() != nil {
		t.Error("failed rebuild must not publish a snapshot")
	}
}

func TestSimilar(t *testing.T) {
	svc := newTestService(t, fixtures(), nil, false)
	ctx := context.Background()

	got, err := svc.Similar(ctx, "Model", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 || got[0] != "EXIF:Model" {
		t.Errorf("similar = %v, want EXIF:Model first", got)
	}

	got, _ = svc.Similar(ctx, "zzzzzzzzzz", 5)
	if len(got) != 0 {
		t.Errorf("similar(zzz) = %v, want none", got)
	}
}

func TestConcurrentLoadScansOnce(t *testing.T) {
	docs := fixtures()
	svc := newTestService(t, docs, nil, false)
	before := testutil.ToFloat64(metrics.KeyIndexRefreshTotal.WithLabelValues("scan"))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.All(context.Background())
		}()
	}
	wg.Wait()

	if docs.scans != 1 {
		t.Errorf("scans = %d, want 1", docs.scans)
	}
	if got := testutil.ToFloat64(metrics.KeyIndexRefreshTotal.WithLabelValues("scan")); got != before+1 {
		t.Errorf("scan refreshes = %v, want %v", got, before+1)
	}
}

func TestCategory(t *testing.T) {
	tests := map[string]string{
		"EXIF:ISO":          "EXIF",
		"Composite:GPS:Lat": "Composite",
		"FileName":          "General",
		":odd":              "General",
	}
	for in, want := range tests {
		if got := Category(in); got != want {
			t.Errorf("Category(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCloseMatches(t *testing.T) {
	candidates := []string{"EXIF:Model", "EXIF:Make", "Composite:LensID", "FileName"}

	got := closeMatches("Modle", candidates, 5, SimilarCutoff)
	if len(got) == 0 || got[0] != "EXIF:Model" {
		t.Errorf("closeMatches(Modle) = %v, want EXIF:Model first", got)
	}

	got = closeMatches("EXIF:Make", candidates, 1, SimilarCutoff)
	if !slices.Equal(got, []string{"EXIF:Make"}) {
		t.Errorf("closeMatches(EXIF:Make, n=1) = %v", got)
	}
}
