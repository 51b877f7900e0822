// Package document holds the metadata record indexed for one source file.
package document

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

const (
	// IDField is the reserved identifier: the file's source path.
	IDField = "SourceFile"
	// ScoreField carries the semantic-search distance; lower is more similar.
	ScoreField = "score"
)

// describeSkip lists technical fields left out of the embedding text.
var describeSkip = map[string]bool{
	IDField:           true,
	"Directory":       true,
	"FilePermissions": true,
}

// Document maps field names to values. Field names may be namespaced as "Category:Name".
type Document map[string]value.Value

// FromRecord builds a Document from an extracted metadata record. Values that are not
// scalars are flattened to their text form.
func FromRecord(rec map[string]any) Document {
	doc := make(Document, len(rec))
	for k, v := range rec {
		doc[k] = value.FromAny(v).Flatten()
	}
	return doc
}

// ID returns the source path, or "" when the identifier is missing or not a string.
func (d Document) ID() string {
	s, _ := d[IDField].AsString()
	return s
}

// Get returns the field value and whether the field is present.
func (d Document) Get(field string) (value.Value, bool) {
	v, ok := d[field]
	return v, ok
}

// Clone returns a shallow copy; values are immutable so this is a full copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Fields returns the field names in lexical order.
func (d Document) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Describe renders the text that gets embedded for semantic search:
// a "File: <basename>" header followed by one "Key: Value" line per field.
func Describe(d Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", path.Base(d.ID()))
	for _, k := range d.Fields() {
		if describeSkip[k] {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", k, d[k].String())
	}
	return b.String()
}

// Page bounds an exact-match retrieval. Limit <= 0 means no cap.
type Page struct {
	Offset int
	Limit  int
}

// Window applies skip-then-limit to docs, returning a fresh slice.
func Window(docs []Document, offset, limit int) []Document {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) {
		return []Document{}
	}
	docs = docs[offset:]
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return slices.Clone(docs)
}

// Entry is a document ready for storage: the record plus the vector of its Describe text.
type Entry struct {
	Doc    Document
	Vector []float32
}
