package exifdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/kailas-cloud/exifdex/internal/db/redis"
	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/repository/files"
	"github.com/kailas-cloud/exifdex/internal/repository/memory"
	healthuc "github.com/kailas-cloud/exifdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/exifdex/internal/usecase/ingest"
	keysuc "github.com/kailas-cloud/exifdex/internal/usecase/keys"
	queryuc "github.com/kailas-cloud/exifdex/internal/usecase/query"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCollection       = "files"
)

// documentStore is what the query and ingest services need from a driver.
type documentStore interface {
	queryuc.Store
	ingestuc.Store
}

// storage is an opened driver.
type storage struct {
	docs  documentStore
	kv    keysuc.SnapshotStore
	ping  healthuc.DBPinger
	close func()
}

// Client is the exifdex SDK entry point. It is safe for concurrent use.
type Client struct {
	storage   *storage
	queries   *queryuc.Service
	ingest    *ingestuc.Service
	keys      *keysuc.Service
	healthSvc *healthuc.Service
	obs       *observer
}

// New creates a Client. With the redis driver the provided context bounds the initial
// readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		collection:       defaultCollection,
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("exifdex: storage required (use WithRedis or WithMemory)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(st, cfg, obs)
	if err != nil {
		st.close()
		return nil, err
	}
	return c, nil
}

func openStorage(ctx context.Context, cfg *clientConfig) (*storage, error) {
	switch cfg.driver {
	case driverMemory:
		s := memory.New(cfg.collection)
		return &storage{docs: s, kv: s, ping: s, close: func() {}}, nil

	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("exifdex: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("exifdex: database not ready: %w", err)
		}

		repo := files.New(s, cfg.collection, cfg.vectorDimensions).
			WithHNSW(files.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct}).
			WithIndexedFields(cfg.tagFields, cfg.numericFields)
		if err := repo.EnsureIndex(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("exifdex: ensure index: %w", err)
		}
		return &storage{docs: repo, kv: s, ping: s, close: s.Close}, nil

	default:
		return nil, fmt.Errorf("exifdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(st *storage, cfg *clientConfig, obs *observer) (*Client, error) {
	// Without an embedder semantic criteria fail with ErrNotImplemented.
	emb := cfg.embedder

	keys, err := keysuc.New(st.docs, st.kv, true)
	if err != nil {
		return nil, fmt.Errorf("exifdex: key index: %w", err)
	}
	keys.WithSnapshotKey(fmt.Sprintf("%skeys:%s", domain.KeyPrefix, cfg.collection))

	queries := queryuc.New(st.docs, emb)
	if cfg.semanticCap > 0 {
		queries = queries.WithSemanticCap(cfg.semanticCap)
	}
	ingest := ingestuc.New(st.docs, emb).WithKeyIndex(keys)
	if cfg.batchSize > 0 {
		ingest = ingest.WithBatchSize(cfg.batchSize)
	}

	return &Client{
		storage:   st,
		queries:   queries,
		ingest:    ingest,
		keys:      keys,
		healthSvc: healthuc.New(st.ping, nil, queries),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.storage != nil {
		c.storage.close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, -1, err) }()

	if err = c.storage.ping.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
