package files

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/exifdex/internal/domain/document"
)

const (
	metaField = "meta"
	// idAlias is the SORTABLE copy of the source path that paged listings order by.
	idAlias = "id"
)

// storedDoc is the RedisJSON layout of one file. Idx mirrors the indexed metadata
// fields under identifier-safe names so FT.CREATE can address them by JSON path.
type storedDoc struct {
	Content string            `json:"content"`
	Vector  []float32         `json:"vector,omitempty"`
	Meta    document.Document `json:"meta"`
	Idx     map[string]any    `json:"idx"`
}

func marshalStored(e document.Entry, p planner) ([]byte, error) {
	sd := storedDoc{
		Content: document.Describe(e.Doc),
		Vector:  e.Vector,
		Meta:    e.Doc,
		Idx:     map[string]any{idAlias: e.Doc.ID()},
	}
	// Values a TAG query could not match exactly stay out of the index, so a pushed-down
	// equality never counts them.
	for field, alias := range p.tags {
		if s, ok := e.Doc[field].AsString(); ok && tagSafe(s) {
			sd.Idx[alias] = s
		}
	}
	for field, alias := range p.numerics {
		if v := e.Doc[field]; v.IsNumber() {
			sd.Idx[alias] = v
		}
	}
	data, err := json.Marshal(sd)
	if err != nil {
		return nil, fmt.Errorf("marshal stored doc: %w", err)
	}
	return data, nil
}

// decodeMeta parses the meta object. JSON.MGET with a JSONPath wraps the match in an
// array, FT.SEARCH RETURN does not; both shapes are accepted.
func decodeMeta(raw []byte) (document.Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty meta")
	}
	if raw[0] == '[' {
		var wrapped []document.Document
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
		if len(wrapped) == 0 {
			return nil, fmt.Errorf("empty meta")
		}
		return wrapped[0], nil
	}
	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return doc, nil
}
