// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package predicate is the recursive boolean expression tree queries are
// filtered by: comparisons, logical AND/OR, column references and literal
// values (spec.md §3/§4.2).
package predicate

import (
	"fmt"
	"reflect"

	"github.com/spf13/cast"

	"relquery/relerr"
	"relquery/schema"
)

// Op is a comparison or logical operator.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
	And
	Or
)

// String renders op the way diagnostics and test names expect to see it.
func (op Op) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case And:
		return "AND"
	case Or:
		return "OR"
	default:
		return "?"
	}
}

// IsComparison reports whether op takes two value operands (as opposed to
// two boolean sub-predicate operands).
func (op Op) IsComparison() bool {
	return op == Eq || op == Ne || op == Lt || op == Le || op == Gt || op == Ge
}

// Predicate is the tagged-variant tree: *Field and *Literal are leaves,
// *Cmp is the sole interior node (carrying both comparison and logical
// operators, per spec.md §3).
type Predicate interface {
	isPredicate()
}

// Field is a leaf referencing a column by name.
type Field struct {
	Name string
}

func (*Field) isPredicate() {}

// Literal is a leaf holding a constant value.
type Literal struct {
	Value interface{}
}

func (*Literal) isPredicate() {}

// Cmp is a binary node: a comparison between two value-producing operands,
// or a logical AND/OR between two boolean sub-predicates.
type Cmp struct {
	Op  Op
	Lhs Predicate
	Rhs Predicate
}

func (*Cmp) isPredicate() {}

// Row is a positional row value, aligned with a schema.Header's Columns
// order.
type Row []interface{}

// Convenience constructors, named in the teacher's expression.NewXxx style.

func NewField(name string) *Field { return &Field{Name: name} }
func NewLiteral(v interface{}) *Literal { return &Literal{Value: v} }
func NewCmp(op Op, lhs, rhs Predicate) *Cmp { return &Cmp{Op: op, Lhs: lhs, Rhs: rhs} }
func NewEquals(lhs, rhs Predicate) *Cmp { return NewCmp(Eq, lhs, rhs) }
func NewNotEquals(lhs, rhs Predicate) *Cmp { return NewCmp(Ne, lhs, rhs) }
func NewLessThan(lhs, rhs Predicate) *Cmp { return NewCmp(Lt, lhs, rhs) }
func NewLessOrEqual(lhs, rhs Predicate) *Cmp { return NewCmp(Le, lhs, rhs) }
func NewGreaterThan(lhs, rhs Predicate) *Cmp { return NewCmp(Gt, lhs, rhs) }
func NewGreaterOrEqual(lhs, rhs Predicate) *Cmp {
	return NewCmp(Ge, lhs, rhs)
}
func NewAnd(lhs, rhs Predicate) *Cmp { return NewCmp(And, lhs, rhs) }
func NewOr(lhs, rhs Predicate) *Cmp { return NewCmp(Or, lhs, rhs) }

// FlattenAnd rewrites a right- or left-leaning tree of ANDs into the flat
// ordered sequence of its non-AND conjuncts: FlattenAnd(AND(AND(x,AND(y,z)),w))
// == [x, y, z, w]. A non-AND predicate flattens to a single-element slice.
func FlattenAnd(p Predicate) []Predicate {
	cmp, ok := p.(*Cmp)
	if !ok || cmp.Op != And {
		return []Predicate{p}
	}
	out := FlattenAnd(cmp.Lhs)
	out = append(out, FlattenAnd(cmp.Rhs)...)
	return out
}

// AndAll folds ps into a single right-leaning conjunction. It panics on an
// empty slice; callers that may have zero conjuncts should check len(ps)
// first (an empty predicate has no canonical meaning here).
func AndAll(ps []Predicate) Predicate {
	if len(ps) == 0 {
		panic("predicate: AndAll of empty slice")
	}
	out := ps[len(ps)-1]
	for i := len(ps) - 2; i >= 0; i-- {
		out = NewAnd(ps[i], out)
	}
	return out
}

// Eval resolves p against row (using header to map column names to
// positions) and returns its value: a bool for Cmp nodes, the row's value
// for a Field, or the literal itself for a Literal.
func Eval(p Predicate, header *schema.Header, row Row) (interface{}, error) {
	switch n := p.(type) {
	case *Field:
		id, ok := header.ColumnByName(n.Name)
		if !ok {
			return nil, relerr.ErrUnknownField.New(n.Name)
		}
		idx := columnIndex(header, id)
		if idx < 0 || idx >= len(row) {
			return nil, relerr.ErrUnknownColumn.New(n.Name)
		}
		return row[idx], nil

	case *Literal:
		return n.Value, nil

	case *Cmp:
		if n.Op == And || n.Op == Or {
			return evalLogical(n, header, row)
		}
		lv, err := Eval(n.Lhs, header, row)
		if err != nil {
			return nil, err
		}
		rv, err := Eval(n.Rhs, header, row)
		if err != nil {
			return nil, err
		}
		return compare(n.Op, lv, rv)

	default:
		return nil, relerr.ErrTypeError.New(fmt.Sprintf("unknown predicate node %T", p))
	}
}

func evalLogical(n *Cmp, header *schema.Header, row Row) (interface{}, error) {
	lhs, err := Reduce(n.Lhs, header, row)
	if err != nil {
		return nil, err
	}
	// short-circuit: AND stops on a false lhs, OR stops on a true lhs.
	if n.Op == And && !lhs {
		return false, nil
	}
	if n.Op == Or && lhs {
		return true, nil
	}
	return Reduce(n.Rhs, header, row)
}

// Reduce evaluates p against row in boolean context, failing with
// ErrTypeError if p resolves to a non-bool value.
func Reduce(p Predicate, header *schema.Header, row Row) (bool, error) {
	v, err := Eval(p, header, row)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, relerr.ErrTypeError.New(fmt.Sprintf("expected bool in boolean context, got %T", v))
	}
	return b, nil
}

func columnIndex(h *schema.Header, id schema.ColId) int {
	for i, c := range h.Columns {
		if c.Id == id {
			return i
		}
	}
	return -1
}

// compare implements the six comparison operators. Numeric operands of
// differing Go kinds (int32 vs int64 vs float64, as a column's declared
// type and a literal's parsed type commonly differ) are coerced via
// spf13/cast before comparison. An ordering comparison (<, <=, >, >=)
// whose operands are neither both numeric nor both strings fails with
// ErrTypeError, matching spec.md §7's "literal types mismatch a column's
// type"; = and != on such operands fall back to reflect.DeepEqual and
// never fail.
func compare(op Op, lv, rv interface{}) (bool, error) {
	switch op {
	case Eq:
		eq, err := valuesEqual(lv, rv)
		return eq, err
	case Ne:
		eq, err := valuesEqual(lv, rv)
		if err != nil {
			return false, err
		}
		return !eq, nil
	case Lt, Le, Gt, Ge:
		return orderCompare(op, lv, rv)
	default:
		return false, relerr.ErrTypeError.New(fmt.Sprintf("unknown comparison operator %v", op))
	}
}

func valuesEqual(lv, rv interface{}) (bool, error) {
	if lf, lok := toFloat(lv); lok {
		if rf, rok := toFloat(rv); rok {
			return lf == rf, nil
		}
	}
	return reflect.DeepEqual(lv, rv), nil
}

func orderCompare(op Op, lv, rv interface{}) (bool, error) {
	if lf, lok := toFloat(lv); lok {
		if rf, rok := toFloat(rv); rok {
			return orderFloat(op, lf, rf), nil
		}
	}
	if ls, lok := lv.(string); lok {
		if rs, rok := rv.(string); rok {
			return orderString(op, ls, rs), nil
		}
	}
	return false, relerr.ErrTypeError.New(fmt.Sprintf("cannot order %T and %T", lv, rv))
}

func toFloat(v interface{}) (float64, bool) {
	switch v.(type) {
	case bool, string, nil:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func orderFloat(op Op, l, r float64) bool {
	switch op {
	case Lt:
		return l < r
	case Le:
		return l <= r
	case Gt:
		return l > r
	case Ge:
		return l >= r
	}
	return false
}

func orderString(op Op, l, r string) bool {
	switch op {
	case Lt:
		return l < r
	case Le:
		return l <= r
	case Gt:
		return l > r
	case Ge:
		return l >= r
	}
	return false
}
