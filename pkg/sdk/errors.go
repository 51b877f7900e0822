package exifdex

import "github.com/kailas-cloud/exifdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrMalformedPipeline      = domain.ErrMalformedPipeline
	ErrStoreUnavailable       = domain.ErrStoreUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrNotImplemented         = domain.ErrNotImplemented
)
