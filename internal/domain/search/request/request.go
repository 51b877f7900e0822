// Package request holds validated query inputs: criteria for counting, grouping and
// plain search, and the advanced query with sort, paging and projection.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/search/mode"
)

// Query parameter limits.
const (
	// MaxQueryLength is the maximum allowed semantic query length.
	MaxQueryLength = 4096
	// DefaultLimit applies when an advanced query omits "limit".
	DefaultLimit = 10
)

// Criteria selects documents by semantic text, an exact filter, or both.
type Criteria struct {
	query  string
	filter filter.Expression
}

// NewCriteria validates criteria. Both parts are optional.
func NewCriteria(query string, where filter.Expression) (Criteria, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Criteria{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	return Criteria{query: query, filter: where}, nil
}

// Query returns the semantic text; "" means none.
func (c Criteria) Query() string { return c.query }

// Filter returns the exact filter.
func (c Criteria) Filter() filter.Expression { return c.filter }

// Semantic reports whether the criteria carry semantic text.
func (c Criteria) Semantic() bool { return c.query != "" }

// IsEmpty reports whether the criteria select every document.
func (c Criteria) IsEmpty() bool { return !c.Semantic() && c.filter.IsEmpty() }

// ParseCriteria interprets free-form criteria input:
//   - empty input selects everything;
//   - an object with "query" and/or "where" sets those parts;
//   - any other object is the filter itself;
//   - a JSON string is the query text;
//   - other JSON values and non-JSON text are taken verbatim as query text.
func ParseCriteria(data []byte) (Criteria, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return NewCriteria("", filter.MatchAll())
	}

	raw, err := decode([]byte(text))
	if err != nil {
		return NewCriteria(text, filter.MatchAll())
	}

	switch v := raw.(type) {
	case map[string]any:
		q, hasQuery := v["query"]
		w, hasWhere := v["where"]
		if !hasQuery && !hasWhere {
			expr, err := filter.Parse(v)
			if err != nil {
				return Criteria{}, fmt.Errorf("criteria filter: %w", err)
			}
			return NewCriteria("", expr)
		}
		query, err := optionalString("query", q)
		if err != nil {
			return Criteria{}, err
		}
		expr, err := optionalFilter(w)
		if err != nil {
			return Criteria{}, err
		}
		return NewCriteria(query, expr)
	case string:
		return NewCriteria(v, filter.MatchAll())
	default:
		return NewCriteria(text, filter.MatchAll())
	}
}

// Advanced is a validated advanced query.
type Advanced struct {
	Criteria
	sortBy     string
	desc       bool
	limit      int
	offset     int
	projection []string
}

// NewAdvanced validates advanced query parameters. sortOrder is "asc" (default) or "desc",
// case-insensitive. A zero limit yields an empty page.
func NewAdvanced(
	criteria Criteria, sortBy, sortOrder string, limit, offset int, projection []string,
) (Advanced, error) {
	if limit < 0 {
		return Advanced{}, fmt.Errorf("%w: limit must be >= 0", domain.ErrInvalidRequest)
	}
	if offset < 0 {
		return Advanced{}, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidRequest)
	}

	var desc bool
	switch strings.ToLower(sortOrder) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return Advanced{}, fmt.Errorf("%w: sort_order must be asc or desc, got %q", domain.ErrInvalidRequest, sortOrder)
	}

	for _, f := range projection {
		if f == "" {
			return Advanced{}, fmt.Errorf("%w: projection field names must be non-empty", domain.ErrInvalidRequest)
		}
	}

	return Advanced{
		Criteria:   criteria,
		sortBy:     sortBy,
		desc:       desc,
		limit:      limit,
		offset:     offset,
		projection: projection,
	}, nil
}

// advancedJSON is the wire shape of an advanced query.
type advancedJSON struct {
	Query      *string         `json:"query"`
	Where      json.RawMessage `json:"where"`
	SortBy     string          `json:"sort_by"`
	SortOrder  string          `json:"sort_order"`
	Limit      *int            `json:"limit"`
	Offset     *int            `json:"offset"`
	Projection []string        `json:"projection"`
}

// ParseAdvanced decodes and validates an advanced query JSON object.
func ParseAdvanced(data []byte) (Advanced, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Advanced{}, fmt.Errorf("%w: advanced query must be a JSON object", domain.ErrInvalidRequest)
	}

	var in advancedJSON
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return Advanced{}, fmt.Errorf("%w: decode advanced query: %v", domain.ErrInvalidRequest, err)
	}

	where := filter.MatchAll()
	if len(in.Where) > 0 && !bytes.Equal(in.Where, []byte("null")) {
		expr, err := filter.ParseJSON(in.Where)
		if err != nil {
			return Advanced{}, fmt.Errorf("where: %w", err)
		}
		where = expr
	}

	var query string
	if in.Query != nil {
		query = *in.Query
	}
	criteria, err := NewCriteria(query, where)
	if err != nil {
		return Advanced{}, err
	}

	limit, offset := DefaultLimit, 0
	if in.Limit != nil {
		limit = *in.Limit
	}
	if in.Offset != nil {
		offset = *in.Offset
	}
	return NewAdvanced(criteria, in.SortBy, in.SortOrder, limit, offset, in.Projection)
}

// SortBy returns the sort field; "" means no sort.
func (a Advanced) SortBy() string { return a.sortBy }

// Desc reports descending order.
func (a Advanced) Desc() bool { return a.desc }

// Limit returns the page size.
func (a Advanced) Limit() int { return a.limit }

// Offset returns the number of leading results to skip.
func (a Advanced) Offset() int { return a.offset }

// Projection returns the fields to keep; nil keeps all.
func (a Advanced) Projection() []string { return a.projection }

// Mode returns the retrieval strategy.
func (a Advanced) Mode() mode.Mode { return mode.Of(a.Semantic(), a.sortBy != "") }

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data")
	}
	return v, nil
}

func optionalString(key string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q must be a string", domain.ErrInvalidRequest, key)
	}
}

func optionalFilter(v any) (filter.Expression, error) {
	switch t := v.(type) {
	case nil:
		return filter.MatchAll(), nil
	case map[string]any:
		expr, err := filter.Parse(t)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("where: %w", err)
		}
		return expr, nil
	default:
		return filter.Expression{}, fmt.Errorf("%w: \"where\" must be an object", domain.ErrInvalidRequest)
	}
}
