package chi

import (
	"encoding/json"

	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/result"
)

// ErrorCode is a machine-readable error class in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeMalformedPipeline      ErrorCode = "malformed_pipeline"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodePayloadTooLarge        ErrorCode = "payload_too_large"
	CodeStoreUnavailable       ErrorCode = "store_unavailable"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeNotImplemented         ErrorCode = "not_implemented"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query    string          `json:"query"`
	Where    json.RawMessage `json:"where,omitempty"`
	NResults *int            `json:"n_results,omitempty"`
}

// DocumentListResponse carries query, search and pipeline results.
type DocumentListResponse struct {
	Items []document.Document `json:"items"`
	Total int                 `json:"total"`
}

// IngestItem is the outcome of one record of POST /files.
type IngestItem struct {
	Index  int            `json:"index"`
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// IngestResponse summarizes POST /files.
type IngestResponse struct {
	Upserted int          `json:"upserted"`
	Skipped  int          `json:"skipped"`
	Items    []IngestItem `json:"items"`
}

// IDListResponse is the body of GET /files/ids.
type IDListResponse struct {
	IDs   []string `json:"ids"`
	Total int      `json:"total"`
}

// CountResponse is the body of POST /count.
type CountResponse struct {
	Count int `json:"count"`
}

// GroupResponse is the body of POST /group/{field}.
type GroupResponse struct {
	Field   string          `json:"field"`
	Buckets []result.Bucket `json:"buckets"`
}

// CategoriesResponse lists metadata key categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// KeysResponse lists the metadata keys of one category.
type KeysResponse struct {
	Category string   `json:"category"`
	Keys     []string `json:"keys"`
}

// SimilarKeysResponse lists known keys close to a misspelled name.
type SimilarKeysResponse struct {
	Name    string   `json:"name"`
	Matches []string `json:"matches"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Stats   *result.Stats     `json:"stats,omitempty"`
	Version string            `json:"version"`
}
