package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// SortKey is one (field, direction) pair.
type SortKey struct {
	Field string
	Desc  bool
}

// Sort orders documents with one stable pass per key, in declared order, so the
// last key ends up as the primary ordering.
type Sort struct {
	Keys []SortKey
}

// Kind implements Stage.
func (Sort) Kind() Kind { return KindSort }

// Apply implements Stage.
func (s Sort) Apply(docs []document.Document) []document.Document {
	out := slices.Clone(docs)
	for _, k := range s.Keys {
		slices.SortStableFunc(out, func(a, b document.Document) int {
			c := CompareField(a, b, k.Field)
			if k.Desc {
				return -c
			}
			return c
		})
	}
	return out
}

// CompareField orders two documents by one field. Missing and null values sort lowest;
// values that both coerce to numbers compare numerically, anything else compares by its
// string form.
func CompareField(a, b document.Document, field string) int {
	av, aok := a.Get(field)
	bv, bok := b.Get(field)
	aNil := !aok || av.IsNull()
	bNil := !bok || bv.IsNull()
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}
	if x, ok := value.ToNumber(av); ok {
		if y, ok := value.ToNumber(bv); ok {
			return cmp.Compare(x, y)
		}
	}
	return strings.Compare(av.String(), bv.String())
}
