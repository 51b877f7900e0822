package query

import (
	"context"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
)

// --- Mocks ---

type findCall struct {
	expr filter.Expression
	page document.Page
}

type semanticCall struct {
	vector []float32
	expr   filter.Expression
	limit  int
}

type mockStore struct {
	docs []document.Document

	findErr     error
	semanticErr error
	countErr    error

	finds     []findCall
	semantics []semanticCall
	counts    []filter.Expression
}

func (m *mockStore) Name() string { return "files" }

// Find applies expr and page to the fixture documents like a real store would.
func (m *mockStore) Find(_ context.Context, expr filter.Expression, page document.Page) ([]document.Document, error) {
	m.finds = append(m.finds, findCall{expr: expr, page: page})
	if m.findErr != nil {
		return nil, m.findErr
	}
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	return document.Window(m.matching(expr), page.Offset, limit), nil
}

// SemanticSearch returns matching fixtures in fixture order, treating it as score order.
func (m *mockStore) SemanticSearch(
	_ context.Context, vector []float32, expr filter.Expression, limit int,
) ([]document.Document, error) {
	m.semantics = append(m.semantics, semanticCall{vector: vector, expr: expr, limit: limit})
	if m.semanticErr != nil {
		return nil, m.semanticErr
	}
	return document.Window(m.matching(expr), 0, limit), nil
}

func (m *mockStore) Count(_ context.Context, expr filter.Expression) (int, error) {
	m.counts = append(m.counts, expr)
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.matching(expr)), nil
}

func (m *mockStore) matching(expr filter.Expression) []document.Document {
	var out []document.Document
	for _, d := range m.docs {
		if expr.Evaluate(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

type mockEmbedder struct {
	vec    []float32
	tokens int
	err    error
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: m.tokens}, nil
}

// --- Fixtures ---

func doc(src string, fields map[string]any) document.Document {
	rec := map[string]any{"SourceFile": src}
	for k, v := range fields {
		rec[k] = v
	}
	return document.FromRecord(rec)
}

func library() []document.Document {
	return []document.Document{
		doc("/tmp/1.jpg", map[string]any{"ISO": 100, "Make": "Apple", "Model": "iPhone 12"}),
		doc("/tmp/2.jpg", map[string]any{"ISO": 800, "Make": "Apple", "Model": "iPhone 13"}),
		doc("/tmp/3.jpg", map[string]any{"ISO": 50, "Make": "Canon", "Model": "EOS R5"}),
		doc("/tmp/4.jpg", map[string]any{"ISO": 200, "Make": "Sony"}),
		doc("/tmp/5.jpg", map[string]any{"Make": "Apple", "Model": "iPhone 12"}),
	}
}

func newTestService() (*Service, *mockStore, *mockEmbedder) {
	st := &mockStore{docs: library()}
	emb := &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}, tokens: 7}
	return New(st, emb), st, emb
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}
