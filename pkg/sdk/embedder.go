package exifdex

import "github.com/kailas-cloud/exifdex/internal/domain"

// Embedder turns text into a vector. Only semantic search and vector ingest need one.
type Embedder = domain.Embedder

// BatchEmbedder is optional. When the Embedder passed to WithEmbedder also implements it,
// Upsert embeds each batch of records with a single call.
type BatchEmbedder = domain.BatchEmbedder

// EmbeddingResult is one vector plus the tokens billed for it.
type EmbeddingResult = domain.EmbeddingResult

// BatchEmbeddingResult holds vectors index-aligned with the input texts.
type BatchEmbeddingResult = domain.BatchEmbeddingResult
