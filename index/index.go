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

// Package index implements index selection (spec.md §4.3): given a
// flattened conjunction and a schema's declared index set, it partitions
// the constraints into index operations (equality, bound) and a residual
// set of scan predicates that no index can serve.
package index

import (
	"sort"

	"github.com/mitchellh/hashstructure"

	"relquery/predicate"
	"relquery/schema"
)

// OpKind discriminates the shapes of IndexOp.
type OpKind int

const (
	OpEq OpKind = iota
	OpLowerBound
	OpUpperBound
	OpScan
)

// CompositeValue is the positional packing of per-column literals for a
// composite (multi-column) IndexOp, ordered the same as the index's
// column list.
type CompositeValue []interface{}

// IndexOp is one operation selected to serve part of a predicate: a seek
// on an index, a one-sided bound, or (OpScan) a residual predicate no
// index could absorb.
type IndexOp struct {
	Kind      OpKind
	Columns   schema.ColList
	Value     interface{} // literal or CompositeValue; unused for OpScan
	Inclusive bool        // meaningful for OpLowerBound/OpUpperBound
	Scan      predicate.Predicate
}

// FieldOp names one (column, comparison-operator) pair that index
// selection consumed — returned alongside the op list so a caller folding
// selections from multiple schemas (spec.md §4.4.5) can deduplicate
// residual Selects against what was already served by an index.
type FieldOp struct {
	Field string
	Op    predicate.Op
}

type constraint struct {
	col       schema.ColId
	fieldName string
	op        predicate.Op
	literal   interface{}
	node      predicate.Predicate
}

// extractConstraints recognizes `field cmp literal` leaves and binary ANDs
// of such leaves (spec.md §4.3 step 1). Anything else (OR, a bare leaf, a
// comparison between two fields, ...) is not extractable.
func extractConstraints(header *schema.Header, node predicate.Predicate) ([]constraint, bool) {
	cmp, ok := node.(*predicate.Cmp)
	if !ok {
		return nil, false
	}
	if cmp.Op.IsComparison() {
		c, ok := toConstraint(header, cmp)
		if !ok {
			return nil, false
		}
		return []constraint{c}, true
	}
	if cmp.Op == predicate.And {
		lhs, ok := extractConstraints(header, cmp.Lhs)
		if !ok {
			return nil, false
		}
		rhs, ok := extractConstraints(header, cmp.Rhs)
		if !ok {
			return nil, false
		}
		return append(lhs, rhs...), true
	}
	// OR is never sargable (spec.md §4.3 "Tie-breaks and policies").
	return nil, false
}

func toConstraint(header *schema.Header, cmp *predicate.Cmp) (constraint, bool) {
	if f, ok := cmp.Lhs.(*predicate.Field); ok {
		if l, ok := cmp.Rhs.(*predicate.Literal); ok {
			col, ok := header.ColumnByName(f.Name)
			if !ok {
				return constraint{}, false
			}
			return constraint{col: col, fieldName: f.Name, op: cmp.Op, literal: l.Value, node: cmp}, true
		}
	}
	if l, ok := cmp.Lhs.(*predicate.Literal); ok {
		if f, ok := cmp.Rhs.(*predicate.Field); ok {
			col, ok := header.ColumnByName(f.Name)
			if !ok {
				return constraint{}, false
			}
			return constraint{col: col, fieldName: f.Name, op: flip(cmp.Op), literal: l.Value, node: cmp}, true
		}
	}
	return constraint{}, false
}

func flip(op predicate.Op) predicate.Op {
	switch op {
	case predicate.Lt:
		return predicate.Gt
	case predicate.Gt:
		return predicate.Lt
	case predicate.Le:
		return predicate.Ge
	case predicate.Ge:
		return predicate.Le
	default:
		return op
	}
}

type colOp struct {
	col schema.ColId
	op  predicate.Op
}

// servedCmpOrder is the fixed iteration order of spec.md §4.3 step 4: "=" ,
// "<", "<=", ">", ">=". "!=" is deliberately absent — it is never served by
// an index.
var servedCmpOrder = []predicate.Op{predicate.Eq, predicate.Lt, predicate.Le, predicate.Gt, predicate.Ge}

// SelectIndexes partitions conjuncts (a flattened AND, per
// predicate.FlattenAnd) into an ordered sequence of IndexOps plus the set
// of (field, op) pairs an index ended up serving.
func SelectIndexes(header *schema.Header, conjuncts []predicate.Predicate) ([]IndexOp, map[FieldOp]bool) {
	var ops []IndexOp
	consumed := map[FieldOp]bool{}

	var pending []constraint
	for _, node := range conjuncts {
		cs, ok := extractConstraints(header, node)
		if !ok {
			ops = append(ops, IndexOp{Kind: OpScan, Scan: node})
			continue
		}
		pending = append(pending, cs...)
	}

	consumedFlag := make([]bool, len(pending))
	groupIdx := map[colOp][]int{}
	for i, c := range pending {
		k := colOp{c.col, c.op}
		groupIdx[k] = append(groupIdx[k], i)
	}

	firstUnconsumed := func(k colOp) (int, bool) {
		for _, i := range groupIdx[k] {
			if !consumedFlag[i] {
				return i, true
			}
		}
		return 0, false
	}

	for _, cmp := range servedCmpOrder {
		for _, idx := range header.IndexesByLengthDesc() {
			if len(idx.Columns) == 1 {
				col := idx.Columns.Head()
				k := colOp{col, cmp}
				for {
					i, ok := firstUnconsumed(k)
					if !ok {
						break
					}
					consumedFlag[i] = true
					c := pending[i]
					ops = append(ops, opFromConstraint(cmp, idx.Columns, c.literal))
					consumed[FieldOp{c.fieldName, c.op}] = true
				}
				continue
			}

			// Multi-column: every participating column must share the
			// same operator, since index seek APIs require homogeneous
			// comparator semantics across the key prefix (spec.md §4.3
			// "Tie-breaks and policies").
			indices := make([]int, len(idx.Columns))
			allHave := true
			for pos, col := range idx.Columns {
				i, ok := firstUnconsumed(colOp{col, cmp})
				if !ok {
					allHave = false
					break
				}
				indices[pos] = i
			}
			if !allHave {
				continue
			}
			values := make(CompositeValue, len(idx.Columns))
			for pos, i := range indices {
				consumedFlag[i] = true
				c := pending[i]
				values[pos] = c.literal
				consumed[FieldOp{c.fieldName, c.op}] = true
			}
			ops = append(ops, opFromConstraint(cmp, idx.Columns, values))
		}
	}

	for i, c := range pending {
		if !consumedFlag[i] {
			ops = append(ops, IndexOp{Kind: OpScan, Scan: c.node})
		}
	}

	return ops, consumed
}

func opFromConstraint(cmp predicate.Op, columns schema.ColList, value interface{}) IndexOp {
	switch cmp {
	case predicate.Eq:
		return IndexOp{Kind: OpEq, Columns: columns, Value: value}
	case predicate.Lt:
		return IndexOp{Kind: OpUpperBound, Columns: columns, Value: value, Inclusive: false}
	case predicate.Le:
		return IndexOp{Kind: OpUpperBound, Columns: columns, Value: value, Inclusive: true}
	case predicate.Gt:
		return IndexOp{Kind: OpLowerBound, Columns: columns, Value: value, Inclusive: false}
	case predicate.Ge:
		return IndexOp{Kind: OpLowerBound, Columns: columns, Value: value, Inclusive: true}
	default:
		panic("index: unsupported comparison operator for an IndexOp")
	}
}

// MergeOutcome is the result of attempting to compose two bound IndexOps
// on the same columns into a single two-sided range.
type MergeOutcome int

const (
	// MergeOK means lower and upper compose into a valid, possibly empty,
	// two-sided range.
	MergeOK MergeOutcome = iota
	// MergeIncompatible means the two ops are not a lower/upper pair on
	// the same columns and cannot be merged at all.
	MergeIncompatible
)

// MergeBounds reports whether lower (an OpLowerBound) and upper (an
// OpUpperBound) on the same columns compose into one range, and whether
// that range is the equal-excluded degenerate case of spec.md §4.4.1
// (Exclusive(v), Exclusive(v)) that can never match a row.
func MergeBounds(lower, upper IndexOp) (outcome MergeOutcome, degenerate bool) {
	if lower.Kind != OpLowerBound || upper.Kind != OpUpperBound {
		return MergeIncompatible, false
	}
	if !lower.Columns.Equal(upper.Columns) {
		return MergeIncompatible, false
	}
	degenerate = !lower.Inclusive && !upper.Inclusive && lower.Value == upper.Value
	return MergeOK, degenerate
}

// Fingerprint returns a structural hash of ops and consumed, which the
// optimizer's residual-select lowering (spec.md §4.4.5) uses to skip a
// Select that repeats one already lowered at the same plan level, without
// repeatedly deep-comparing predicate trees.
func Fingerprint(ops []IndexOp, consumed map[FieldOp]bool) (uint64, error) {
	type stable struct {
		Ops      []IndexOp
		Consumed []FieldOp
	}
	fields := make([]FieldOp, 0, len(consumed))
	for fo := range consumed {
		fields = append(fields, fo)
	}
	// map iteration order is randomized; sort for a hash stable across
	// calls with the same logical consumed set.
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Field != fields[j].Field {
			return fields[i].Field < fields[j].Field
		}
		return fields[i].Op < fields[j].Op
	})
	return hashstructure.Hash(stable{Ops: ops, Consumed: fields}, nil)
}
