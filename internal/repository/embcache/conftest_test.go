package embcache

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain"
)

// lenEmbedder returns a one-component vector holding the text length.
type lenEmbedder struct {
	err   error
	calls [][]string
}

func (e *lenEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls = append(e.calls, []string{text})
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}

// batchLenEmbedder is lenEmbedder with native batching.
type batchLenEmbedder struct {
	lenEmbedder
	short bool // drop the last vector
}

func (e *batchLenEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := domain.BatchEmbeddingResult{PromptTokens: len(texts), TotalTokens: len(texts)}
	for _, t := range texts {
		out.Embeddings = append(out.Embeddings, []float32{float32(len(t))})
	}
	if e.short {
		out.Embeddings = out.Embeddings[:len(out.Embeddings)-1]
	}
	return out, nil
}

// kvStore is an in-memory store; getErr and setErr simulate outages.
type kvStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	gets   int
}

func newKVStore() *kvStore { return &kvStore{data: make(map[string][]byte)} }

func (s *kvStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *kvStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *kvStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.data {
		out = append(out, k)
	}
	return out
}

// multiKVStore adds GetMulti and records how many times it ran.
type multiKVStore struct {
	*kvStore
	multiCalls int
}

func (s *multiKVStore) GetMulti(_ context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = s.data[k]
	}
	return out, nil
}

func newTestEmbedder(t *testing.T, inner domain.Embedder, s store) *CachedEmbedder {
	t.Helper()
	return New(inner, s, nil, zap.NewNop()).WithModel("text-embedding-3-small")
}

func allPrefixed(keys []string) bool {
	for _, k := range keys {
		if !strings.HasPrefix(k, keyPrefix) {
			return false
		}
	}
	return true
}
