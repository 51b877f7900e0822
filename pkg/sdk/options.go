package exifdex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverRedis  = "redis"
	driverMemory = "memory"
)

type clientConfig struct {
	driver   string // "redis" or "memory"
	addrs    []string
	password string

	collection string
	embedder   Embedder

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	tagFields        []string
	numericFields    []string
	semanticCap      int
	batchSize        int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores documents in a Redis 8+ instance with the Search and JSON modules.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps documents in process memory. Nothing survives Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
		c.addrs = nil
	})
}

// WithCollection names the collection. Default: "files".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithEmbedder sets the text embedding provider used for semantic search.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the vector size of the Redis index. Defaults to 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithIndexedFields mirrors metadata fields into the Redis index so filters on them
// are evaluated by the server. Ignored by the memory driver.
func WithIndexedFields(tags, numerics []string) Option {
	return optionFunc(func(c *clientConfig) {
		c.tagFields = tags
		c.numericFields = numerics
	})
}

// WithSemanticCap bounds how many candidates a semantic search may return before
// filtering, sorting and grouping. Default: 2000.
func WithSemanticCap(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.semanticCap = n
	})
}

// WithBatchSize sets how many records are embedded and stored per round-trip.
// Default: 100.
func WithBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
