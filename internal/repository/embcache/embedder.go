// Package embcache caches embedding vectors in the key-value store, keyed by a hash of
// the model and the text, so unchanged files re-ingest without provider calls.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "emb:"

// store is the consumer interface for cached vectors (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// multiGetter is implemented by stores that read many keys per round-trip.
type multiGetter interface {
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
}

// CachedEmbedder serves vectors from the store and embeds only what it has not seen.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	model   string
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner with a cache in s. lookups counts results under the "result" label
// ("hit" or "miss"); nil disables counting.
func New(inner domain.Embedder, s store, lookups *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, lookups: lookups, logger: logger}
}

// WithModel scopes keys to a model so switching models never serves stale vectors.
func (c *CachedEmbedder) WithModel(model string) *CachedEmbedder {
	c.model = model
	return c
}

// Embed returns the cached vector for text, or embeds and caches it. Hits cost no tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed looks every text up at once and sends the distinct misses to the inner
// embedder in one call. Token counts cover the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}
	out := c.lookup(ctx, keys)

	// Identical texts in one batch are embedded once.
	pending := make(map[string][]int)
	var misses []string
	for i, vec := range out {
		if vec != nil {
			c.count("hit")
			continue
		}
		c.count("miss")
		if _, seen := pending[keys[i]]; !seen {
			misses = append(misses, texts[i])
		}
		pending[keys[i]] = append(pending[keys[i]], i)
	}
	if len(misses) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d cache misses: %w", len(misses), err)
	}
	if len(res.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(misses))
	}

	for j, text := range misses {
		key := c.key(text)
		vec := res.Embeddings[j]
		for _, i := range pending[key] {
			out[i] = vec
		}
		c.put(ctx, key, vec)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// lookup returns the cached vectors index-aligned with keys; misses and unreadable
// entries are nil. Store failures degrade to misses.
func (c *CachedEmbedder) lookup(ctx context.Context, keys []string) [][]float32 {
	raws := make([][]byte, len(keys))
	if mg, ok := c.store.(multiGetter); ok {
		got, err := mg.GetMulti(ctx, keys)
		if err != nil {
			c.logger.Warn("Embedding cache read failed", zap.Int("keys", len(keys)), zap.Error(err))
		} else {
			copy(raws, got)
		}
	} else {
		for i, k := range keys {
			data, err := c.store.Get(ctx, k)
			if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
				c.logger.Warn("Embedding cache read failed", zap.String("key", k), zap.Error(err))
			}
			raws[i] = data
		}
	}

	out := make([][]float32, len(keys))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		vec, err := decodeVector(raw)
		if err != nil {
			c.logger.Warn("Discarding unreadable cached embedding", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[i] = vec
	}
	return out
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, encodeVector(vec)); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// encodeVector lays out a uint32 dimension followed by little-endian float32 components.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4+len(v)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(v))) //nolint:gosec // embedding sizes are far below 2^32
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cached vector too short: %d bytes", len(data))
	}
	dim := int(binary.LittleEndian.Uint32(data))
	if dim == 0 || len(data) != 4+dim*4 {
		return nil, fmt.Errorf("cached vector header says %d components, payload has %d bytes", dim, len(data)-4)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	return vec, nil
}
