package files

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/exifdex/internal/db"
)

// buildIndex creates the FT index definition: the sortable source path, one TAG or
// NUMERIC attribute per mirrored metadata field, and the HNSW/COSINE vector field.
func buildIndex(name, prefix string, vectorDim int, hnsw HNSWConfig, p planner) (*db.IndexDefinition, error) {
	b := db.NewIndex(name).Prefix(prefix).
		Tag("$.idx."+idAlias, tagSeparator, true).As(idAlias).Sortable()

	for _, field := range slices.Sorted(maps.Keys(p.tags)) {
		alias := p.tags[field]
		b.Tag("$.idx."+alias, tagSeparator, true).As(alias)
	}
	for _, field := range slices.Sorted(maps.Keys(p.numerics)) {
		alias := p.numerics[field]
		b.Numeric("$.idx." + alias).As(alias)
	}

	b.Vector("$.vector", db.VectorSpec{
		Dim:         vectorDim,
		Distance:    db.DistanceCosine,
		M:           hnsw.M,
		EFConstruct: hnsw.EFConstruct,
	}).As("vector")

	return b.Build()
}
