package db

// VectorScoreField is the pseudo-field FT.SEARCH fills with the KNN distance.
const VectorScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// Filter is an FT.SEARCH pre-filter expression; empty means no pre-filter.
	Filter string
	Vector []float32
	K      int
	// EFRuntime widens the HNSW candidate list for this query; zero keeps the index
	// default. Raise it when K is large, otherwise recall drops.
	EFRuntime    int
	ReturnFields []string
}

// ListQuery pages through the documents matching an FT.SEARCH query.
type ListQuery struct {
	IndexName string
	Query     string
	Offset    int
	Limit     int
	// SortBy names a SORTABLE attribute to order by, ascending; empty keeps index order.
	SortBy       string
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is the vector distance (lower is closer)
// for KNN searches and zero otherwise.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
