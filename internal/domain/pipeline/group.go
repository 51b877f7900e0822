package pipeline

import (
	"math"
	"slices"

	"github.com/kailas-cloud/exifdex/internal/domain/document"
	"github.com/kailas-cloud/exifdex/internal/domain/value"
)

// GroupIDField is the output field holding the group key.
const GroupIDField = "_id"

// AccOp is an accumulator operator.
type AccOp uint8

const (
	// AccSum adds the numeric values of a field, or a literal once per member.
	AccSum AccOp = iota
	// AccAvg averages the numeric values of a field; 0 when there are none.
	AccAvg
	// AccMin is the smallest numeric value of a field; null when there are none.
	AccMin
	// AccMax is the largest numeric value of a field; null when there are none.
	AccMax
	// AccPush collects the raw values of a field, null for members lacking it.
	AccPush
	// AccFirst is the field value of the first member.
	AccFirst
)

var accNames = [...]string{"$sum", "$avg", "$min", "$max", "$push", "$first"}

func (o AccOp) String() string {
	if int(o) < len(accNames) {
		return accNames[o]
	}
	return "unknown"
}

func parseAccOp(token string) (AccOp, bool) {
	for i, name := range accNames {
		if name == token {
			return AccOp(i), true
		}
	}
	return 0, false
}

// Accumulator computes one output field per group. Field is the referenced input field;
// an empty Field on AccSum means "add Literal per member", so {"$sum": 1} counts.
type Accumulator struct {
	Op      AccOp
	Field   string
	Literal float64
}

// GroupKey resolves a document's bucket: a field reference or a constant (null groups
// everything together).
type GroupKey struct {
	Field    string
	Constant value.Value
}

func (k GroupKey) resolve(d document.Document) value.Value {
	if k.Field == "" {
		return k.Constant
	}
	v, ok := d.Get(k.Field)
	if !ok {
		return value.Null()
	}
	return v.Flatten()
}

// Group buckets documents by Key in first-seen order and emits one document per bucket.
type Group struct {
	Key          GroupKey
	Accumulators map[string]Accumulator
}

// Kind implements Stage.
func (Group) Kind() Kind { return KindGroup }

// Apply implements Stage.
func (g Group) Apply(docs []document.Document) []document.Document {
	var order []string
	keys := make(map[string]value.Value)
	buckets := make(map[string][]document.Document)

	for _, d := range docs {
		k := g.Key.resolve(d)
		h := k.Key()
		if _, seen := buckets[h]; !seen {
			order = append(order, h)
			keys[h] = k
		}
		buckets[h] = append(buckets[h], d)
	}

	out := make([]document.Document, 0, len(order))
	for _, h := range order {
		members := buckets[h]
		res := document.Document{GroupIDField: keys[h]}
		for name, acc := range g.Accumulators {
			res[name] = acc.compute(members)
		}
		out = append(out, res)
	}
	return out
}

func (a Accumulator) compute(members []document.Document) value.Value {
	switch a.Op {
	case AccSum:
		if a.Field == "" {
			total := a.Literal * float64(len(members))
			if a.Literal == math.Trunc(a.Literal) && fitsInt64(a.Literal) && fitsInt64(total) {
				return value.Int(int64(a.Literal) * int64(len(members)))
			}
			return value.Float(total)
		}
		var sum float64
		for _, n := range a.numbers(members) {
			sum += n
		}
		return value.Float(sum)
	case AccAvg:
		nums := a.numbers(members)
		if len(nums) == 0 {
			return value.Float(0)
		}
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return value.Float(sum / float64(len(nums)))
	case AccMin:
		nums := a.numbers(members)
		if len(nums) == 0 {
			return value.Null()
		}
		return value.Float(slices.Min(nums))
	case AccMax:
		nums := a.numbers(members)
		if len(nums) == 0 {
			return value.Null()
		}
		return value.Float(slices.Max(nums))
	case AccPush:
		items := make([]value.Value, len(members))
		for i, d := range members {
			v, ok := d.Get(a.Field)
			if !ok {
				v = value.Null()
			}
			items[i] = v
		}
		return value.List(items...)
	case AccFirst:
		if len(members) == 0 {
			return value.Null()
		}
		if v, ok := members[0].Get(a.Field); ok {
			return v
		}
		return value.Null()
	default:
		return value.Null()
	}
}

// numbers returns the member values that coerce to numbers; the rest are skipped.
func (a Accumulator) numbers(members []document.Document) []float64 {
	nums := make([]float64, 0, len(members))
	for _, d := range members {
		v, ok := d.Get(a.Field)
		if !ok {
			continue
		}
		if n, ok := value.ToNumber(v); ok {
			nums = append(nums, n)
		}
	}
	return nums
}

// fitsInt64 reports whether f lies strictly inside the int64 range.
func fitsInt64(f float64) bool {
	return f > math.MinInt64 && f < math.MaxInt64
}
