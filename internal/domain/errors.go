package domain

import "errors"

var (
	// ErrInvalidRequest signals malformed request input (filters, criteria, query options).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMalformedPipeline signals a pipeline that is not an array of recognized stages.
	ErrMalformedPipeline = errors.New("malformed pipeline")
	// ErrStoreUnavailable signals a failed document store call.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)
