package exifdex

import (
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/result"
)

// Document is one file's metadata: field name to bool, int64, float64, string, []any
// or nil. Semantic results also carry their distance under "score".
type Document map[string]any

// ID returns the document's source path.
func (d Document) ID() string {
	s, _ := d[document.IDField].(string)
	return s
}

// Criteria selects documents by semantic text, an exact filter, or both. The zero value
// selects everything.
type Criteria struct {
	Query string
	Where map[string]any
}

// AdvancedQuery adds ordering, paging and projection to Criteria.
type AdvancedQuery struct {
	Criteria
	SortBy     string
	SortOrder  string // "asc" (default) or "desc"
	Limit      int    // zero yields an empty page
	Offset     int
	Projection []string
}

// Stage is one aggregation pipeline stage, e.g. Stage{"$limit": 10}.
type Stage map[string]any

// Bucket is one group of GroupBy.
type Bucket = result.Bucket

// Stats summarizes the collection.
type Stats = result.Stats

// UpsertReport is the outcome of Upsert.
type UpsertReport struct {
	Upserted int
	Skipped  []SkippedRecord
}

// SkippedRecord is an input record that was not stored.
type SkippedRecord struct {
	Index  int
	ID     string
	Reason error
}

func fromDocuments(docs []document.Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		m := make(Document, len(d))
		for k, v := range d {
			m[k] = v.Native()
		}
		out[i] = m
	}
	return out
}
