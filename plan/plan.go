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

// Package plan is the algebraic representation of queries: source
// references, a pipeline of operators over a source, index scans, inner
// joins and index joins (spec.md §3). A QueryPlan is a source plus a flat
// operator list rather than a pointer-graph of operators; joins reach their
// nested plans through *QueryPlan fields, each nested plan owned by the
// join that holds it, so a QueryPlan has no cyclic ownership (spec.md §9).
package plan

import (
	uuid "github.com/satori/go.uuid"

	"relquery/predicate"
	"relquery/rowtype"
	"relquery/schema"
)

// SourceId opaquely identifies one input to a SourceProvider. A plan may
// reference a given SourceId at most once (the take-once protocol, §3/§5).
type SourceId struct {
	v uuid.UUID
}

// NewSourceId allocates a fresh, process-unique SourceId.
func NewSourceId() SourceId {
	return SourceId{v: uuid.NewV4()}
}

func (id SourceId) String() string {
	return id.v.String()
}

// SourceRef is either an in-memory (delta) source supplied for the
// duration of one execution, or a handle to a database table.
type SourceRef interface {
	isSourceRef()
	// Header returns the column list, declared indexes and access policy
	// of this source.
	Header() *schema.Header
}

// InMemory is a small, in-memory source — typically a delta of recent
// changes to a base table, used in incremental view maintenance (the
// GLOSSARY's "Delta source").
type InMemory struct {
	Id         SourceId
	Hdr        *schema.Header
	RowType    *rowtype.Type
	ApproxRows int64
}

func (*InMemory) isSourceRef()          {}
func (s *InMemory) Header() *schema.Header { return s.Hdr }

// DbTable is a handle to a database-resident table.
type DbTable struct {
	Table   schema.TableId
	Hdr     *schema.Header
	RowType *rowtype.Type
}

func (*DbTable) isSourceRef()             {}
func (s *DbTable) Header() *schema.Header { return s.Hdr }

// TableIdOf reports the TableId of s if it is a DbTable.
func TableIdOf(s SourceRef) (schema.TableId, bool) {
	if t, ok := s.(*DbTable); ok {
		return t.Table, true
	}
	return 0, false
}

// BoundKind discriminates the three shapes an index bound can take.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one side (lower or upper) of an IndexScan's range.
type Bound struct {
	Kind  BoundKind
	Value interface{}
}

func UnboundedBound() Bound { return Bound{Kind: Unbounded} }
func InclusiveBound(v interface{}) Bound { return Bound{Kind: Inclusive, Value: v} }
func ExclusiveBound(v interface{}) Bound { return Bound{Kind: Exclusive, Value: v} }

// IsEqualExclusive reports whether lo and hi are both Exclusive bounds on
// the identical value — the degenerate zero-row range of spec.md §4.4.1.
func IsEqualExclusive(lo, hi Bound) bool {
	return lo.Kind == Exclusive && hi.Kind == Exclusive && lo.Value == hi.Value
}

// Query is one operator in a QueryPlan's pipeline.
type Query interface {
	isQuery()
}

// IndexScan seeks Table's index on Columns within [Lower, Upper].
// Degenerate is set (not an error — see spec.md §7 DegeneratePlan) when
// the bounds were merged into an always-empty range.
type IndexScan struct {
	Table      schema.TableId
	Columns    schema.ColList
	Lower      Bound
	Upper      Bound
	Degenerate bool
}

func (*IndexScan) isQuery() {}

// Select filters rows by Pred.
type Select struct {
	Pred predicate.Predicate
}

func (*Select) isQuery() {}

// FieldOrWildcard is one element of a Project's column list: either a
// named field or a `*` wildcard.
type FieldOrWildcard struct {
	Field    string
	Wildcard bool
}

func ProjField(name string) FieldOrWildcard { return FieldOrWildcard{Field: name} }
func ProjWildcard() FieldOrWildcard { return FieldOrWildcard{Wildcard: true} }

// Project keeps Columns, resolving any wildcard against WildcardTable (the
// table whose full column set the `*` expands to), when set.
type Project struct {
	Columns       []FieldOrWildcard
	WildcardTable *schema.TableId
}

func (*Project) isQuery() {}

// JoinInner joins the plan-so-far (lhs) against Rhs on ColLhs = ColRhs.
// Semi selects only LHS rows with at least one RHS match (a semijoin);
// non-semi returns the concatenated row.
type JoinInner struct {
	Rhs    *QueryPlan
	ColLhs *predicate.Field
	ColRhs *predicate.Field
	Semi   bool
}

func (*JoinInner) isQuery() {}

// IndexJoin executes a join by probing an index on IndexSide with key
// values drawn from ProbeSide's rows. It appears only as the first
// operator in a plan (spec.md §3 invariant).
type IndexJoin struct {
	ProbeSide       *QueryPlan
	ProbeField      *predicate.Field
	IndexSide       SourceRef
	IndexSelect     predicate.Predicate // optional residual filter on IndexSide, may be nil
	IndexCol        schema.ColId
	ReturnIndexRows bool
}

func (*IndexJoin) isQuery() {}

// QueryPlan is a source plus a left-to-right pipeline of operators over it.
type QueryPlan struct {
	Source SourceRef
	Ops    []Query
}

// New starts a plan scanning source, with an empty operator pipeline.
func New(source SourceRef) *QueryPlan {
	return &QueryPlan{Source: source}
}

// LastOp returns the plan's last operator, or nil if Ops is empty.
func (p *QueryPlan) LastOp() Query {
	if len(p.Ops) == 0 {
		return nil
	}
	return p.Ops[len(p.Ops)-1]
}

// Append adds op to the end of the pipeline and returns p, for chaining —
// the plain builder primitive an external compiler uses; it performs no
// merging or pushdown (that belongs to the analyzer, §4.4).
func (p *QueryPlan) Append(op Query) *QueryPlan {
	p.Ops = append(p.Ops, op)
	return p
}

// WithIndexScan appends an IndexScan operator.
func (p *QueryPlan) WithIndexScan(scan *IndexScan) *QueryPlan {
	return p.Append(scan)
}

// WithSelectRaw appends a Select operator without attempting to merge it
// with an existing one. Analyzer rewrites (WithSelect) supersede this for
// optimizer-internal use; it remains the builder-level primitive.
func (p *QueryPlan) WithSelectRaw(pred predicate.Predicate) *QueryPlan {
	return p.Append(&Select{Pred: pred})
}

// WithProject appends a Project operator.
func (p *QueryPlan) WithProject(columns []FieldOrWildcard, wildcardTable *schema.TableId) *QueryPlan {
	return p.Append(&Project{Columns: columns, WildcardTable: wildcardTable})
}

// WithJoinInner appends a JoinInner operator.
func (p *QueryPlan) WithJoinInner(rhs *QueryPlan, colLhs, colRhs *predicate.Field, semi bool) *QueryPlan {
	return p.Append(&JoinInner{Rhs: rhs, ColLhs: colLhs, ColRhs: colRhs, Semi: semi})
}

// Clone returns a shallow copy of p with its own Ops slice, so appending to
// the clone never mutates p. Operators themselves (and nested plans) are
// shared by reference, consistent with QueryPlan's value-independent,
// immutable-after-construction lifecycle (spec.md §5).
func (p *QueryPlan) Clone() *QueryPlan {
	ops := make([]Query, len(p.Ops))
	copy(ops, p.Ops)
	return &QueryPlan{Source: p.Source, Ops: ops}
}

// RowIterator is the row-producing cursor an external SourceProvider lends
// out. Iteration, cancellation and suspension are all the executor's
// concern; this package only fixes the shape of the handle.
type RowIterator interface {
	Next() (predicate.Row, error)
	Close() error
}

// SourceProvider lends each SourceId's rows out at most once, decoupling
// plan compilation from any particular input instance (spec.md §3/§5).
type SourceProvider interface {
	TakeSource(id SourceId) (it RowIterator, ok bool)
}
