package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/exifdex/internal/domain"
	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// Operator is a closed set of field operators. Anything else parses to OpUnknown.
type Operator uint8

const (
	// OpUnknown never matches.
	OpUnknown Operator = iota
	// OpEq matches a present field equal to the operand.
	OpEq
	// OpNe matches a field that is absent or differs from the operand.
	OpNe
	// OpGt matches a present field greater than the operand.
	OpGt
	// OpGte matches a present field greater than or equal to the operand.
	OpGte
	// OpLt matches a present field less than the operand.
	OpLt
	// OpLte matches a present field less than or equal to the operand.
	OpLte
	// OpIn matches a present field equal to any member of the set.
	OpIn
	// OpNin matches a field that is absent or equal to no member of the set.
	OpNin
)

var operatorTokens = map[string]Operator{
	"$eq":  OpEq,
	"$ne":  OpNe,
	"$gt":  OpGt,
	"$gte": OpGte,
	"$lt":  OpLt,
	"$lte": OpLte,
	"$in":  OpIn,
	"$nin": OpNin,
}

// ParseOperator maps a "$op" token to its Operator.
func ParseOperator(token string) Operator {
	return operatorTokens[token]
}

var operatorNames = [...]string{"unknown", "$eq", "$ne", "$gt", "$gte", "$lt", "$lte", "$in", "$nin"}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "unknown"
}

// Condition is one operator applied to a field.
type Condition struct {
	op      Operator
	token   string
	operand value.Value
	set     []value.Value
}

// NewCondition creates a scalar condition.
func NewCondition(op Operator, operand value.Value) Condition {
	return Condition{op: op, token: op.String(), operand: operand}
}

// NewSetCondition creates an $in / $nin condition.
func NewSetCondition(op Operator, items []value.Value) Condition {
	return Condition{op: op, token: op.String(), set: slices.Clone(items)}
}

// Op returns the operator.
func (c Condition) Op() Operator { return c.op }

// Token returns the operator as written in the request, e.g. "$regex" for an unknown one.
func (c Condition) Token() string { return c.token }

// Operand returns the scalar operand.
func (c Condition) Operand() value.Value { return c.operand }

// Set returns the $in / $nin members.
func (c Condition) Set() []value.Value { return c.set }

// Matches applies the condition to a field value; present is false when the field is absent.
func (c Condition) Matches(v value.Value, present bool) bool {
	switch c.op {
	case OpEq:
		return present && value.Equal(v, c.operand)
	case OpNe:
		return !present || !value.Equal(v, c.operand)
	case OpGt, OpGte, OpLt, OpLte:
		if !present {
			return false
		}
		cmp, ok := value.Compare(v, c.operand)
		if !ok {
			return false
		}
		switch c.op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn:
		return present && c.member(v)
	case OpNin:
		return !present || !c.member(v)
	default:
		return false
	}
}

func (c Condition) member(v value.Value) bool {
	for _, item := range c.set {
		if value.Equal(v, item) {
			return true
		}
	}
	return false
}

// NodeKind tags an Expression node.
type NodeKind uint8

const (
	// NodeAnd is true when every child is true. With no children it matches everything.
	NodeAnd NodeKind = iota
	// NodeOr is true when any child is true.
	NodeOr
	// NodeField applies all of its conditions to one field.
	NodeField
)

// Expression is a filter tree.
type Expression struct {
	kind     NodeKind
	field    string
	conds    []Condition
	children []Expression
}

// MatchAll returns the empty expression.
func MatchAll() Expression { return Expression{kind: NodeAnd} }

// And combines expressions with logical AND.
func And(children ...Expression) Expression {
	return Expression{kind: NodeAnd, children: slices.Clone(children)}
}

// Or combines expressions with logical OR.
func Or(children ...Expression) Expression {
	return Expression{kind: NodeOr, children: slices.Clone(children)}
}

// Field applies conditions to one field.
func Field(name string, conds ...Condition) Expression {
	return Expression{kind: NodeField, field: name, conds: slices.Clone(conds)}
}

// Eq is shorthand for Field(name, NewCondition(OpEq, v)).
func Eq(name string, v value.Value) Expression {
	return Field(name, NewCondition(OpEq, v))
}

// Kind returns the node kind.
func (e Expression) Kind() NodeKind { return e.kind }

// Children returns the children of an And/Or node.
func (e Expression) Children() []Expression { return e.children }

// FieldName returns the field of a NodeField.
func (e Expression) FieldName() string { return e.field }

// Conditions returns the conditions of a NodeField.
func (e Expression) Conditions() []Condition { return e.conds }

// IsEmpty reports whether the expression matches every document.
func (e Expression) IsEmpty() bool {
	if e.kind != NodeAnd {
		return false
	}
	for _, child := range e.children {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

// Evaluate reports whether doc satisfies e. It never fails.
func (e Expression) Evaluate(doc document.Document) bool {
	switch e.kind {
	case NodeAnd:
		for _, child := range e.children {
			if !child.Evaluate(doc) {
				return false
			}
		}
		return true
	case NodeOr:
		for _, child := range e.children {
			if child.Evaluate(doc) {
				return true
			}
		}
		return false
	case NodeField:
		v, present := doc.Get(e.field)
		for _, c := range e.conds {
			if !c.Matches(v, present) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Evaluate reports whether doc satisfies expr.
func Evaluate(doc document.Document, expr Expression) bool {
	return expr.Evaluate(doc)
}

// Parse builds an Expression from a decoded JSON object. Keys are visited in sorted
// order so the tree is deterministic; several keys combine with implicit AND.
func Parse(raw map[string]any) (Expression, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	nodes := make([]Expression, 0, len(keys))
	for _, k := range keys {
		node, err := parseKey(k, raw[k])
		if err != nil {
			return Expression{}, err
		}
		nodes = append(nodes, node)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return And(nodes...), nil
}

// ParseJSON decodes a JSON object and parses it.
func ParseJSON(data []byte) (Expression, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Expression{}, fmt.Errorf("%w: filter must be a JSON object: %v", domain.ErrInvalidRequest, err)
	}
	return Parse(raw)
}

func parseKey(key string, raw any) (Expression, error) {
	switch key {
	case "$and", "$or":
		items, ok := raw.([]any)
		if !ok {
			return Expression{}, fmt.Errorf("%w: %s expects an array", domain.ErrInvalidRequest, key)
		}
		children := make([]Expression, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return Expression{}, fmt.Errorf("%w: %s[%d] must be an object", domain.ErrInvalidRequest, key, i)
			}
			child, err := Parse(obj)
			if err != nil {
				return Expression{}, err
			}
			children = append(children, child)
		}
		if key == "$and" {
			return And(children...), nil
		}
		return Or(children...), nil
	}
	if strings.HasPrefix(key, "$") {
		return Field(key, Condition{op: OpUnknown, token: key}), nil
	}

	ops, ok := raw.(map[string]any)
	if !ok {
		return Eq(key, value.FromAny(raw)), nil
	}

	tokens := make([]string, 0, len(ops))
	for t := range ops {
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)

	conds := make([]Condition, 0, len(tokens))
	for _, t := range tokens {
		op := ParseOperator(t)
		switch op {
		case OpIn, OpNin:
			items, ok := ops[t].([]any)
			if !ok {
				return Expression{}, fmt.Errorf("%w: %s on %q expects an array", domain.ErrInvalidRequest, t, key)
			}
			set := make([]value.Value, len(items))
			for i, item := range items {
				set[i] = value.FromAny(item)
			}
			conds = append(conds, NewSetCondition(op, set))
		case OpUnknown:
			conds = append(conds, Condition{op: OpUnknown, token: t})
		default:
			conds = append(conds, NewCondition(op, value.FromAny(ops[t])))
		}
	}
	return Field(key, conds...), nil
}
