package pipeline

import (
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// Limit keeps the first N documents.
type Limit struct{ N int }

// Kind implements Stage.
func (Limit) Kind() Kind { return KindLimit }

// Apply implements Stage.
func (l Limit) Apply(docs []document.Document) []document.Document {
	return document.Window(docs, 0, max(l.N, 0))
}

// Skip drops the first N documents.
type Skip struct{ N int }

// Kind implements Stage.
func (Skip) Kind() Kind { return KindSkip }

// Apply implements Stage.
func (s Skip) Apply(docs []document.Document) []document.Document {
	return document.Window(docs, s.N, -1)
}

// Count collapses the sequence into a single {Field: n} document.
type Count struct{ Field string }

// Kind implements Stage.
func (Count) Kind() Kind { return KindCount }

// Apply implements Stage.
func (c Count) Apply(docs []document.Document) []document.Document {
	return []document.Document{{c.Field: value.Int(int64(len(docs)))}}
}
