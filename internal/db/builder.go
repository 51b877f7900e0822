package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition over JSON documents.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(path string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: path, Type: IndexFieldNumeric})
	return b
}

// Tag adds a TAG field. An empty separator keeps the server default (",").
func (b *IndexBuilder) Tag(path, separator string, caseSensitive bool) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:             path,
		Type:             IndexFieldTag,
		TagSeparator:     separator,
		TagCaseSensitive: caseSensitive,
	})
	return b
}

// Vector adds an HNSW VECTOR field.
func (b *IndexBuilder) Vector(path string, spec VectorSpec) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: path, Type: IndexFieldVector, Vector: spec})
	return b
}

// As sets the AS alias of the most recently added field.
func (b *IndexBuilder) As(alias string) *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].Alias = alias
	}
	return b
}

// Sortable marks the most recently added field SORTABLE.
func (b *IndexBuilder) Sortable() *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		b.def.Fields[n-1].Sortable = true
	}
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// String renders the definition as an FT.CREATE command line, for logs.
func (idx *IndexDefinition) String() string {
	args, err := idx.Args()
	if err != nil {
		return "FT.CREATE " + idx.Name + " <invalid: " + err.Error() + ">"
	}
	return "FT.CREATE " + strings.Join(args, " ")
}
