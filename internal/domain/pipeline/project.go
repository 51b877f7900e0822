package pipeline

import (
	"github.com/kailas-cloud/exifdex/internal/domain/document"
)

// ProjectAction says what happens to one projected field.
type ProjectAction uint8

const (
	// ProjectExclude drops the field.
	ProjectExclude ProjectAction = iota
	// ProjectInclude keeps the field when the document has it.
	ProjectInclude
	// ProjectRename copies Source into the output field.
	ProjectRename
)

// ProjectField is one entry of a projection spec.
type ProjectField struct {
	Field  string
	Action ProjectAction
	Source string
}

// Project reshapes documents. Any non-_id include switches to inclusion mode, which starts
// from an empty document; otherwise the document is copied and excluded fields removed.
type Project struct {
	Fields []ProjectField
}

// Kind implements Stage.
func (Project) Kind() Kind { return KindProject }

// Inclusion reports whether the projection runs in inclusion mode.
func (p Project) Inclusion() bool {
	for _, f := range p.Fields {
		if f.Field != GroupIDField && f.Action == ProjectInclude {
			return true
		}
	}
	return false
}

// Apply implements Stage.
func (p Project) Apply(docs []document.Document) []document.Document {
	if len(p.Fields) == 0 {
		out := make([]document.Document, len(docs))
		for i, d := range docs {
			out[i] = d.Clone()
		}
		return out
	}

	inclusion := p.Inclusion()
	dropID := false
	for _, f := range p.Fields {
		if f.Field == GroupIDField && f.Action == ProjectExclude {
			dropID = true
		}
	}

	out := make([]document.Document, len(docs))
	for i, src := range docs {
		var dst document.Document
		if inclusion {
			dst = make(document.Document, len(p.Fields)+1)
			if v, ok := src.Get(GroupIDField); ok && !dropID {
				dst[GroupIDField] = v
			}
		} else {
			dst = src.Clone()
		}
		for _, f := range p.Fields {
			switch f.Action {
			case ProjectInclude:
				if v, ok := src.Get(f.Field); ok {
					dst[f.Field] = v
				}
			case ProjectExclude:
				delete(dst, f.Field)
			case ProjectRename:
				if v, ok := src.Get(f.Source); ok {
					dst[f.Field] = v
				}
			}
		}
		out[i] = dst
	}
	return out
}
