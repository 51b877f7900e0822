package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/exifdex/internal/config"
	dbRedis "github.com/kailas-cloud/exifdex/internal/db/redis"
	"github.com/kailas-cloud/exifdex/internal/domain"
	logpkg "github.com/kailas-cloud/exifdex/internal/logger"
	"github.com/kailas-cloud/exifdex/internal/metrics"
	"github.com/kailas-cloud/exifdex/internal/repository/embcache"
	"github.com/kailas-cloud/exifdex/internal/repository/files"
	"github.com/kailas-cloud/exifdex/internal/repository/memory"
	chiTransport "github.com/kailas-cloud/exifdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/exifdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/exifdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/exifdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/exifdex/internal/usecase/ingest"
	keysuc "github.com/kailas-cloud/exifdex/internal/usecase/keys"
	queryuc "github.com/kailas-cloud/exifdex/internal/usecase/query"
	"github.com/kailas-cloud/exifdex/internal/version"
)

// documentStore is what the query and ingest services need from a storage driver.
type documentStore interface {
	queryuc.Store
	ingestuc.Store
}

// backend is the storage selected by database.driver.
type backend struct {
	docs  documentStore
	kv    keysuc.SnapshotStore
	ping  healthuc.DBPinger
	close func()
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting exifdex API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("collection", cfg.Index.Collection),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()

	ctx := context.Background()

	vectorDim := cfg.Embedding.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	be, err := openBackend(ctx, cfg, vectorDim, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer be.close()

	// Build embedder chains; semantic search stays off without a provider.
	var (
		docEmbedder   domain.Embedder
		queryEmbedder domain.Embedder
		embedChecker  healthuc.EmbeddingChecker
	)
	if cfg.Embedding.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
		docEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, be.kv, logger)
		queryEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, be.kv, logger)
		embedChecker = base
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", vectorDim),
			zap.Bool("cache", cfg.Embedding.CacheEnabled()),
		)
	} else {
		logger.Warn("embedding.api_key is empty, semantic search is disabled")
	}

	// Create use case services
	keySvc, err := keysuc.New(be.docs, be.kv, cfg.Keys.CompressEnabled())
	if err != nil {
		logger.Fatal("Failed to create key index", zap.Error(err))
	}
	keySvc.WithSnapshotKey(cfg.Keys.SnapshotKey)

	querySvc := queryuc.New(be.docs, queryEmbedder).
		WithSemanticCap(cfg.Query.SemanticCap).
		WithCountCap(cfg.Query.CountCap)
	ingestSvc := ingestuc.New(be.docs, docEmbedder).
		WithBatchSize(cfg.Query.IngestBatchSize).
		WithKeyIndex(keySvc)
	healthSvc := healthuc.New(be.ping, embedChecker, querySvc)

	server := chiTransport.NewServer(querySvc, ingestSvc, keySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.APIKeyAuth(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.NotFound(jsonStatus(http.StatusNotFound, "not_found", "route not found"))
	r.MethodNotAllowed(jsonStatus(http.StatusMethodNotAllowed, "bad_request", "method not allowed"))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openBackend connects the configured storage driver. The redis driver also makes sure
// the collection's search index exists.
func openBackend(ctx context.Context, cfg config.Config, vectorDim int, logger *zap.Logger) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.New(cfg.Index.Collection)
		logger.Warn("Using the in-memory store, documents are lost on restart")
		return &backend{docs: store, kv: store, ping: store, close: func() {}}, nil

	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database")

		repo := files.New(store, cfg.Index.Collection, vectorDim).
			WithHNSW(files.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}).
			WithIndexedFields(cfg.Index.TagFields, cfg.Index.NumericFields).
			WithPageSize(cfg.Index.PageSize)
		if err := repo.EnsureIndex(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure index: %w", err)
		}
		return &backend{docs: repo, kv: store, ping: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Prefix
func buildEmbedder(
	base *openaiEmb.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	kv keysuc.SnapshotStore,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cfg.CacheEnabled() {
		embedder = embcache.New(base, kv, metrics.EmbeddingCacheTotal, logger).WithModel(cfg.Model)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger).
		WithMaxAPIBatchSize(cfg.MaxAPIBatchSize)

	// Outermost, so cached vectors are keyed by the prefixed text.
	return domain.WithPrefix(embedder, instruction)
}
