// Package value defines the typed scalar carried by metadata documents.
package value

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the variants a Value can hold.
type Kind uint8

const (
	// KindNull is the zero Kind.
	KindNull Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindInt is a signed 64-bit integer.
	KindInt
	// KindFloat is a 64-bit float.
	KindFloat
	// KindString is a UTF-8 string.
	KindString
	// KindList only appears in derived documents, e.g. the output of $push.
	KindList
)

var kindNames = [...]string{"null", "bool", "int", "float", "string", "list"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an immutable tagged variant. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a copy of items.
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float held by v. Ints are not converted; use ToNumber for that.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns a copy of the list elements, or nil when v is not a list.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// Native converts v to a plain Go value: nil, bool, int64, float64, string or []any.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// Flatten turns a list into its JSON text so the result is always a scalar.
func (v Value) Flatten() Value {
	if v.kind != KindList {
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return String(v.String())
	}
	return String(string(b))
}

// ToNumber coerces v to a float64. Numbers convert directly, booleans become 1 or 0 and
// strings are parsed after trimming whitespace. Null, lists and non-finite results do not
// coerce.
func ToNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, finite(v.f)
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Equal is type-sensitive equality: "200" is not 200. Ints and floats compare by
// numeric value.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.i == b.i
		}
		return a.number() == b.number()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of compatible kinds: numbers with numbers, strings with strings,
// booleans with booleans (false first). ok is false for any other pairing.
func Compare(a, b Value) (c int, ok bool) {
	switch {
	case a.IsNumber() && b.IsNumber():
		if a.kind == KindInt && b.kind == KindInt {
			return cmp.Compare(a.i, b.i), true
		}
		return cmp.Compare(a.number(), b.number()), true
	case a.kind == KindString && b.kind == KindString:
		return strings.Compare(a.s, b.s), true
	case a.kind == KindBool && b.kind == KindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case b.b:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// Key returns a hashable form of v; two values share a Key exactly when Equal holds.
func (v Value) Key() string {
	switch v.kind {
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindInt:
		return "n:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(v.f), 10)
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "s:" + v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Key()
		}
		return "l:[" + strings.Join(parts, ",") + "]"
	default:
		return "z"
	}
}

// String renders v for display and for string-based ordering.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "null"
	}
}

// MarshalJSON keeps floats recognizable as floats ("12.0", not "12").
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		if !finite(v.f) {
			return nil, fmt.Errorf("value: unsupported float %v", v.f)
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value, keeping the integer/float distinction.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded JSON value (preferably decoded with UseNumber). Objects have
// no variant of their own and are kept as their compact JSON text.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		return fromNumber(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return String(fmt.Sprint(t))
		}
		return String(string(b))
	default:
		return String(fmt.Sprint(t))
	}
}

func fromNumber(n json.Number) Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i)
		}
	}
	f, err := n.Float64()
	if err != nil {
		return String(s)
	}
	return Float(f)
}

func (v Value) number() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
