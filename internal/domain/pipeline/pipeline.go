// Package pipeline implements the aggregation stages. Every stage is a pure function
// from a document sequence to a new document sequence; inputs are never mutated.
package pipeline

import (
	"fmt"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
)

// Kind identifies a stage.
type Kind uint8

const (
	// KindMatch keeps documents satisfying a filter; a leading one may run in the store.
	KindMatch Kind = iota
	// KindGroup buckets documents by a key and computes accumulators per bucket.
	KindGroup
	// KindSort orders documents by one or more fields.
	KindSort
	// KindProject keeps, drops or renames fields.
	KindProject
	// KindLimit truncates the sequence to n documents.
	KindLimit
	// KindSkip drops the first n documents.
	KindSkip
	// KindCount collapses the sequence into one document holding its length.
	KindCount
)

var kindNames = [...]string{"$match", "$group", "$sort", "$project", "$limit", "$skip", "$count"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Stage transforms a document sequence.
type Stage interface {
	Kind() Kind
	Apply(docs []document.Document) []document.Document
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// Validate checks constraints that span stages: only the first Match may carry a
// semantic query, because only the first stage is executed by the store.
func (p Pipeline) Validate() error {
	for i, st := range p {
		if i == 0 {
			continue
		}
		if m, ok := st.(Match); ok && m.Semantic() {
			return fmt.Errorf("%w: stage %d: semantic query is only allowed in the first $match", domain.ErrMalformedPipeline, i)
		}
	}
	return nil
}

// Apply threads docs through every stage in order. The empty pipeline yields an empty result.
func (p Pipeline) Apply(docs []document.Document) []document.Document {
	if len(p) == 0 {
		return []document.Document{}
	}
	for _, st := range p {
		docs = st.Apply(docs)
	}
	return docs
}

// Match keeps documents that satisfy Filter. Query, when set, is a semantic-search text
// that only the store can execute; Apply ignores it.
type Match struct {
	Filter filter.Expression
	Query  string
}

// Kind implements Stage.
func (Match) Kind() Kind { return KindMatch }

// Semantic reports whether the stage carries a semantic query.
func (m Match) Semantic() bool { return m.Query != "" }

// Apply implements Stage.
func (m Match) Apply(docs []document.Document) []document.Document {
	out := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if m.Filter.Evaluate(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}
