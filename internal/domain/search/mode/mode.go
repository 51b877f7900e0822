// Package mode names the retrieval strategies of an advanced query.
package mode

// Mode is how candidates are fetched from the store before in-process steps run.
type Mode string

// Retrieval strategies.
const (
	// Paged pushes offset and limit down to the store; no sort, no semantic text.
	Paged Mode = "paged"
	// SortedExact fetches every filter match, then sorts and slices.
	SortedExact Mode = "sorted_exact"
	// SortedSemantic fetches a capped batch of nearest matches, then sorts and slices.
	SortedSemantic Mode = "sorted_semantic"
	// Semantic fetches offset+limit nearest matches in score order, then slices.
	Semantic Mode = "semantic"
)

// Of picks the strategy for a query.
func Of(semantic, sorted bool) Mode {
	switch {
	case semantic && sorted:
		return SortedSemantic
	case semantic:
		return Semantic
	case sorted:
		return SortedExact
	default:
		return Paged
	}
}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Paged || m == SortedExact || m == SortedSemantic || m == Semantic
}
