// Package result holds the summary shapes returned by grouping and stats queries.
package result

import (
	"cmp"
	"slices"
)

// UnknownBucket collects documents that lack the grouped field.
const UnknownBucket = "Unknown"

// Bucket is one group of a GroupBy: the stringified field value and its member count.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Buckets orders counts by descending count, then by value.
func Buckets(counts map[string]int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for v, n := range counts {
		out = append(out, Bucket{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

// Stats summarizes the collection.
type Stats struct {
	TotalFiles     int    `json:"total_files"`
	CollectionName string `json:"collection_name"`
}
