package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// QueryKey is the $match key that carries semantic-search text.
const QueryKey = "query"

var errNotObject = errors.New("expected a JSON object")

// Parse decodes a JSON array of single-key stage objects. Nothing is executed when the
// input is rejected.
func Parse(data []byte) (Pipeline, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", domain.ErrMalformedPipeline)
	}
	var raws []json.RawMessage
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: pipeline must be an array of stages", domain.ErrMalformedPipeline)
	}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: pipeline must be an array of stages", domain.ErrMalformedPipeline)
	}

	p := make(Pipeline, 0, len(raws))
	for i, raw := range raws {
		st, err := parseStage(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %d: %v", domain.ErrMalformedPipeline, i, err)
		}
		p = append(p, st)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseStage(raw json.RawMessage) (Stage, error) {
	members, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	if len(members) != 1 {
		return nil, fmt.Errorf("stage must have exactly one key, got %d", len(members))
	}
	name, arg := members[0].key, members[0].raw

	switch name {
	case "$match":
		return parseMatch(arg)
	case "$group":
		return parseGroup(arg)
	case "$sort":
		return parseSort(arg)
	case "$project":
		return parseProject(arg)
	case "$limit":
		n, err := parseCount(arg)
		if err != nil {
			return nil, fmt.Errorf("$limit: %w", err)
		}
		return Limit{N: n}, nil
	case "$skip":
		n, err := parseCount(arg)
		if err != nil {
			return nil, fmt.Errorf("$skip: %w", err)
		}
		return Skip{N: n}, nil
	case "$count":
		var field string
		if err := json.Unmarshal(arg, &field); err != nil || field == "" || strings.HasPrefix(field, "$") {
			return nil, fmt.Errorf("$count expects a non-empty field name")
		}
		return Count{Field: field}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

func parseMatch(arg json.RawMessage) (Stage, error) {
	raw, err := decodeAny(arg)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("$match: %w", errNotObject)
	}

	var m Match
	if q, ok := obj[QueryKey]; ok {
		text, ok := q.(string)
		if !ok {
			return nil, fmt.Errorf("$match: %q must be a string", QueryKey)
		}
		m.Query = text
		delete(obj, QueryKey)
	}
	expr, err := filter.Parse(obj)
	if err != nil {
		return nil, fmt.Errorf("$match: %w", err)
	}
	m.Filter = expr
	return m, nil
}

func parseGroup(arg json.RawMessage) (Stage, error) {
	raw, err := decodeAny(arg)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("$group: %w", errNotObject)
	}

	g := Group{Accumulators: make(map[string]Accumulator, len(obj))}
	if id, ok := obj[GroupIDField]; ok {
		if ref, isRef := fieldRef(id); isRef {
			g.Key.Field = ref
		} else {
			g.Key.Constant = value.FromAny(id).Flatten()
		}
	}

	for out, spec := range obj {
		if out == GroupIDField {
			continue
		}
		acc, err := parseAccumulator(spec)
		if err != nil {
			return nil, fmt.Errorf("$group field %q: %w", out, err)
		}
		g.Accumulators[out] = acc
	}
	return g, nil
}

func parseAccumulator(spec any) (Accumulator, error) {
	obj, ok := spec.(map[string]any)
	if !ok || len(obj) != 1 {
		return Accumulator{}, fmt.Errorf("accumulator must be an object with one operator")
	}
	for token, operand := range obj {
		op, ok := parseAccOp(token)
		if !ok {
			return Accumulator{}, fmt.Errorf("unknown accumulator %q", token)
		}
		if ref, isRef := fieldRef(operand); isRef {
			return Accumulator{Op: op, Field: ref}, nil
		}
		if op == AccSum {
			if n, ok := value.ToNumber(value.FromAny(operand)); ok && isNumeric(operand) {
				return Accumulator{Op: AccSum, Literal: n}, nil
			}
		}
		return Accumulator{}, fmt.Errorf("%s expects a field reference like \"$Field\"", token)
	}
	return Accumulator{}, nil
}

func parseSort(arg json.RawMessage) (Stage, error) {
	members, err := decodeObject(arg)
	if err != nil {
		return nil, fmt.Errorf("$sort: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("$sort needs at least one field")
	}
	s := Sort{Keys: make([]SortKey, 0, len(members))}
	for _, m := range members {
		dir, err := decodeAny(m.raw)
		if err != nil {
			return nil, err
		}
		desc, err := sortDesc(dir)
		if err != nil {
			return nil, fmt.Errorf("$sort field %q: %w", m.key, err)
		}
		s.Keys = append(s.Keys, SortKey{Field: m.key, Desc: desc})
	}
	return s, nil
}

func sortDesc(dir any) (bool, error) {
	switch d := dir.(type) {
	case json.Number:
		switch f, _ := d.Float64(); f {
		case 1:
			return false, nil
		case -1:
			return true, nil
		}
	case string:
		switch strings.ToLower(d) {
		case "asc":
			return false, nil
		case "desc":
			return true, nil
		}
	}
	return false, fmt.Errorf("direction must be 1, -1, \"asc\" or \"desc\", got %v", dir)
}

func parseProject(arg json.RawMessage) (Stage, error) {
	members, err := decodeObject(arg)
	if err != nil {
		return nil, fmt.Errorf("$project: %w", err)
	}
	p := Project{Fields: make([]ProjectField, 0, len(members))}
	for _, m := range members {
		raw, err := decodeAny(m.raw)
		if err != nil {
			return nil, err
		}
		f := ProjectField{Field: m.key}
		switch v := raw.(type) {
		case bool:
			if v {
				f.Action = ProjectInclude
			}
		case json.Number:
			n, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("$project field %q: bad number", m.key)
			}
			if n != 0 {
				f.Action = ProjectInclude
			}
		case string:
			ref, ok := fieldRef(v)
			if !ok {
				return nil, fmt.Errorf("$project field %q: expected 0, 1 or \"$Source\"", m.key)
			}
			f.Action = ProjectRename
			f.Source = ref
		default:
			return nil, fmt.Errorf("$project field %q: expected 0, 1 or \"$Source\"", m.key)
		}
		p.Fields = append(p.Fields, f)
	}
	return p, nil
}

func parseCount(arg json.RawMessage) (int, error) {
	raw, err := decodeAny(arg)
	if err != nil {
		return 0, err
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected a non-negative integer")
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("expected a non-negative integer, got %s", n)
	}
	return int(f), nil
}

// fieldRef extracts "Field" from "$Field".
func fieldRef(x any) (string, bool) {
	s, ok := x.(string)
	if !ok || len(s) < 2 || s[0] != '$' {
		return "", false
	}
	return s[1:], true
}

func isNumeric(x any) bool {
	_, ok := x.(json.Number)
	return ok
}

type member struct {
	key string
	raw json.RawMessage
}

// decodeObject reads a JSON object keeping member order, which $sort and $project need.
func decodeObject(raw json.RawMessage) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, member{key: key, raw: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeAny(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
