package db

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceCosine is cosine distance: 0 for identical directions, 2 for opposite.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
)

// IndexFieldType enumerates the FT schema attribute kinds.
type IndexFieldType int

const (
	// IndexFieldTag is an exact-match TAG attribute.
	IndexFieldTag IndexFieldType = iota + 1
	// IndexFieldNumeric is a range-queryable NUMERIC attribute.
	IndexFieldNumeric
	// IndexFieldVector is an HNSW VECTOR attribute.
	IndexFieldVector
)

// VectorSpec configures an HNSW vector attribute of FLOAT32 components.
type VectorSpec struct {
	Dim         int
	Distance    DistanceMetric // default COSINE
	M           int            // max edges per node; 0 keeps the server default (16)
	EFConstruct int            // build-time candidate list; 0 keeps the server default (200)
}

// IndexField is one attribute of an FT schema over JSON documents.
type IndexField struct {
	Name  string // JSONPath
	Alias string // AS name used in queries; required for JSONPaths to be queryable
	Type  IndexFieldType

	TagSeparator     string
	TagCaseSensitive bool

	// Sortable keeps a SORTBY copy of a TAG or NUMERIC value. TAG copies are stored
	// unnormalized (UNF) so they sort byte-wise.
	Sortable bool

	Vector VectorSpec
}

// IndexDefinition is an FT index over JSON documents under the given key prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

// IsValidIdentifier reports whether s is usable as an index name.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if seen[key] {
			return fmt.Errorf("duplicate field name: %s", key)
		}
		seen[key] = true

		switch f.Type {
		case IndexFieldTag, IndexFieldNumeric:
		case IndexFieldVector:
			if f.Vector.Dim <= 0 {
				return fmt.Errorf("vector field %s requires positive DIM", key)
			}
			if f.Sortable {
				return fmt.Errorf("vector field %s cannot be SORTABLE", key)
			}
		default:
			return fmt.Errorf("field %s: unknown type %d", key, f.Type)
		}
	}
	return nil
}

// Args renders the FT.CREATE arguments that follow the command name.
func (idx *IndexDefinition) Args() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "JSON"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		args = append(args, idx.Fields[i].args()...)
	}
	return args, nil
}

func (f *IndexField) args() []string {
	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case IndexFieldNumeric:
		args = append(args, "NUMERIC")
		if f.Sortable {
			args = append(args, "SORTABLE")
		}
	case IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
		if f.Sortable {
			args = append(args, "SORTABLE", "UNF")
		}
	case IndexFieldVector:
		distance := f.Vector.Distance
		if distance == "" {
			distance = DistanceCosine
		}
		attrs := []string{
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(f.Vector.Dim),
			"DISTANCE_METRIC", string(distance),
		}
		if f.Vector.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.Vector.M))
		}
		if f.Vector.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.Vector.EFConstruct))
		}
		args = append(args, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
		args = append(args, attrs...)
	}
	return args
}
