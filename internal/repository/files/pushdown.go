package files

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/db"
	"github.com/kailas-cloud/exifdex/internal/domain/search/filter"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

const (
	matchAllQuery = "*"
	tagSeparator  = "|"
)

// planner translates filter expressions into FT.SEARCH queries over the mirrored
// idx attributes. A plan always matches a superset of what the expression matches;
// exact reports whether it matches precisely the same set.
type planner struct {
	tags     map[string]string // metadata field -> TAG alias
	numerics map[string]string // metadata field -> NUMERIC alias
}

func newPlanner(tags, numerics []string) planner {
	p := planner{
		tags:     make(map[string]string, len(tags)),
		numerics: make(map[string]string, len(numerics)),
	}
	used := make(map[string]bool)
	for _, f := range tags {
		if a := aliasFor("t_", f); !used[a] {
			used[a] = true
			p.tags[f] = a
		}
	}
	for _, f := range numerics {
		if a := aliasFor("n_", f); !used[a] {
			used[a] = true
			p.numerics[f] = a
		}
	}
	return p
}

// aliasFor maps a metadata field name onto [A-Za-z0-9_].
func aliasFor(prefix, field string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (p planner) plan(expr filter.Expression) (query string, exact bool) {
	q, exact := p.node(expr)
	if q == "" {
		return matchAllQuery, exact
	}
	return q, exact
}

// node returns "" when it can place no constraint on e.
func (p planner) node(e filter.Expression) (string, bool) {
	switch e.Kind() {
	case filter.NodeAnd:
		exact := true
		var parts []string
		for _, child := range e.Children() {
			q, ex := p.node(child)
			exact = exact && ex
			if q != "" {
				parts = append(parts, q)
			}
		}
		return conjunction(parts), exact

	case filter.NodeOr:
		children := e.Children()
		if len(children) == 0 {
			return "", false
		}
		exact := true
		parts := make([]string, 0, len(children))
		for _, child := range children {
			q, ex := p.node(child)
			if q == "" {
				return "", false
			}
			exact = exact && ex
			parts = append(parts, q)
		}
		if len(parts) == 1 {
			return parts[0], exact
		}
		return "(" + strings.Join(parts, " | ") + ")", exact

	case filter.NodeField:
		exact := true
		var parts []string
		for _, c := range e.Conditions() {
			q := p.condition(e.FieldName(), c)
			if q == "" {
				exact = false
				continue
			}
			parts = append(parts, q)
		}
		return conjunction(parts), exact

	default:
		return "", false
	}
}

func (p planner) condition(field string, c filter.Condition) string {
	switch c.Op() {
	case filter.OpEq:
		return p.equal(field, c.Operand())
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		alias, ok := p.numerics[field]
		if !ok || !c.Operand().IsNumber() {
			return ""
		}
		f, _ := value.ToNumber(c.Operand())
		return "@" + alias + ":" + numericRange(c.Op(), f)
	case filter.OpIn:
		return p.in(field, c.Set())
	default:
		return ""
	}
}

func (p planner) equal(field string, v value.Value) string {
	if s, ok := v.AsString(); ok {
		alias, indexed := p.tags[field]
		if !indexed || !tagSafe(s) {
			return ""
		}
		return "@" + alias + ":{" + db.EscapeTag(s) + "}"
	}
	if v.IsNumber() {
		alias, indexed := p.numerics[field]
		if !indexed {
			return ""
		}
		f, _ := value.ToNumber(v)
		n := formatNumber(f)
		return "@" + alias + ":[" + n + " " + n + "]"
	}
	return ""
}

func (p planner) in(field string, set []value.Value) string {
	if len(set) == 0 {
		return ""
	}

	if alias, ok := p.tags[field]; ok {
		escaped := make([]string, 0, len(set))
		for _, v := range set {
			s, isStr := v.AsString()
			if !isStr || !tagSafe(s) {
				escaped = nil
				break
			}
			escaped = append(escaped, db.EscapeTag(s))
		}
		if escaped != nil {
			return "@" + alias + ":{" + strings.Join(escaped, " | ") + "}"
		}
	}

	if _, ok := p.numerics[field]; ok {
		parts := make([]string, 0, len(set))
		for _, v := range set {
			if !v.IsNumber() {
				return ""
			}
			parts = append(parts, p.equal(field, v))
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " | ") + ")"
	}
	return ""
}

// tagSafe rejects values the TAG index would not store verbatim: empty, padded
// with whitespace, or containing the separator.
func tagSafe(s string) bool {
	return s != "" && strings.TrimSpace(s) == s && !strings.Contains(s, tagSeparator)
}

func numericRange(op filter.Operator, f float64) string {
	n := formatNumber(f)
	switch op {
	case filter.OpGt:
		return "[(" + n + " +inf]"
	case filter.OpGte:
		return "[" + n + " +inf]"
	case filter.OpLt:
		return "[-inf (" + n + "]"
	default:
		return "[-inf " + n + "]"
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func conjunction(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, " ") + ")"
	}
}
