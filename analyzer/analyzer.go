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

// Package analyzer is the query rewriter / optimizer (spec.md §4.4): a
// fixed sequence of local rewrites — predicate pushdown into joins,
// semijoin recognition, index-join materialization, index-join reordering,
// and residual select lowering — applied recursively over join subtrees,
// with a bounded fixpoint when an index-join reorientation is revealed.
package analyzer

import (
	"context"
	"fmt"

	"github.com/mitchellh/hashstructure"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"relquery/index"
	"relquery/plan"
	"relquery/predicate"
	"relquery/schema"
)

// RowCountOracle answers "how many rows does this table have", consulted
// only by index-join reordering's small-table heuristic (§4.4.4). No
// cost-based cardinality estimation beyond this single threshold check is
// in scope (spec.md §1 Non-goals).
type RowCountOracle func(table schema.TableId, name string) int64

// maxFixpointPasses bounds the re-optimization spec.md §4.4.6 allows when a
// round's result is a sole IndexJoin: "never loops more than twice".
const maxFixpointPasses = 2

// Optimize applies the full rewrite pipeline to p using spec.md §4.4.4's
// literal small-table threshold (500) and returns the optimized plan. p
// itself is never mutated.
func Optimize(p *plan.QueryPlan, oracle RowCountOracle, log logrus.FieldLogger) *plan.QueryPlan {
	return OptimizeWithThreshold(p, oracle, log, defaultSmallTableThreshold)
}

// OptimizeWithThreshold is Optimize with an explicit small-table threshold,
// for callers driven by config.Config.Optimizer.SmallTableThreshold instead
// of the spec's literal default.
func OptimizeWithThreshold(p *plan.QueryPlan, oracle RowCountOracle, log logrus.FieldLogger, smallTableThreshold int64) *plan.QueryPlan {
	if log == nil {
		log = logrus.StandardLogger()
	}
	span, _ := opentracing.StartSpanFromContext(context.Background(), "analyzer.Optimize")
	defer span.Finish()
	return optimizeLevel(p, oracle, log, span, smallTableThreshold)
}

func optimizeLevel(p *plan.QueryPlan, oracle RowCountOracle, log logrus.FieldLogger, parent opentracing.Span, smallTableThreshold int64) *plan.QueryPlan {
	cur := p
	var prevHash uint64
	havePrevHash := false

	for pass := 0; pass < maxFixpointPasses; pass++ {
		passSpan := opentracing.StartSpan("analyzer.pass", opentracing.ChildOf(parent.Context()))

		cur = recurseJoins(cur, oracle, log, passSpan, smallTableThreshold)
		cur = lowerAllResidualSelects(cur, log)
		cur = trySemiJoin(cur)
		cur = tryIndexJoin(cur)
		cur = reorderIndexJoin(cur, oracle, smallTableThreshold)

		passSpan.Finish()

		h, err := hashstructure.Hash(snapshot(cur), nil)
		if err == nil {
			if havePrevHash && h == prevHash {
				// Already a fixpoint; a further pass would be a no-op.
				break
			}
			prevHash, havePrevHash = h, true
		}

		if !isSoleIndexJoin(cur) {
			break
		}
	}
	return cur
}

func isSoleIndexJoin(p *plan.QueryPlan) bool {
	if len(p.Ops) != 1 {
		return false
	}
	_, ok := p.Ops[0].(*plan.IndexJoin)
	return ok
}

// snapshot is a hash-stable projection of a plan used only to detect the
// §4.4.6 fixpoint cheaply; it need not (and does not) round-trip back to a
// QueryPlan.
func snapshot(p *plan.QueryPlan) interface{} {
	return struct {
		Ops int
		Str string
	}{len(p.Ops), describe(p)}
}

func recurseJoins(p *plan.QueryPlan, oracle RowCountOracle, log logrus.FieldLogger, span opentracing.Span, smallTableThreshold int64) *plan.QueryPlan {
	out := &plan.QueryPlan{Source: p.Source}
	for _, op := range p.Ops {
		switch o := op.(type) {
		case *plan.JoinInner:
			newRhs := optimizeLevel(o.Rhs, oracle, log, span, smallTableThreshold)
			out = out.Append(&plan.JoinInner{Rhs: newRhs, ColLhs: o.ColLhs, ColRhs: o.ColRhs, Semi: o.Semi})
		case *plan.IndexJoin:
			newProbe := optimizeLevel(o.ProbeSide, oracle, log, span, smallTableThreshold)
			out = out.Append(&plan.IndexJoin{
				ProbeSide:       newProbe,
				ProbeField:      o.ProbeField,
				IndexSide:       o.IndexSide,
				IndexSelect:     o.IndexSelect,
				IndexCol:        o.IndexCol,
				ReturnIndexRows: o.ReturnIndexRows,
			})
		default:
			out = out.Append(op)
		}
	}
	return out
}

// ---- 4.4.1 predicate pushdown -------------------------------------------

// sourceTableId scopes a pushdown decision to a table id. In-memory (delta)
// sources carry no TableId; they are scoped to 0, which can never collide
// with a real DbTable id a JoinInner's RHS references, since those are
// always >= 1 in a schema built by a real catalog.
func sourceTableId(s plan.SourceRef) schema.TableId {
	if id, ok := plan.TableIdOf(s); ok {
		return id
	}
	return 0
}

type constraintOp interface {
	table() schema.TableId
	mergeInto(last plan.Query) (plan.Query, bool)
	fresh() plan.Query
}

func pushConstraint(p *plan.QueryPlan, c constraintOp) *plan.QueryPlan {
	if len(p.Ops) == 0 {
		return p.Clone().Append(c.fresh())
	}
	last := p.LastOp()

	if join, ok := last.(*plan.JoinInner); ok {
		prefixOps := append([]plan.Query{}, p.Ops[:len(p.Ops)-1]...)
		prefix := &plan.QueryPlan{Source: p.Source, Ops: prefixOps}

		rhsTable := sourceTableId(join.Rhs.Source)
		if rhsTable != c.table() {
			prefix = pushConstraint(prefix, c)
			return prefix.Append(join)
		}
		newRhs := pushConstraint(join.Rhs, c)
		newJoin := &plan.JoinInner{Rhs: newRhs, ColLhs: join.ColLhs, ColRhs: join.ColRhs, Semi: join.Semi}
		return prefix.Append(newJoin)
	}

	if merged, ok := c.mergeInto(last); ok {
		out := p.Clone()
		out.Ops[len(out.Ops)-1] = merged
		return out
	}
	return p.Clone().Append(c.fresh())
}

type selectConstraint struct {
	t    schema.TableId
	pred predicate.Predicate
}

func (c *selectConstraint) table() schema.TableId { return c.t }

func (c *selectConstraint) mergeInto(last plan.Query) (plan.Query, bool) {
	sel, ok := last.(*plan.Select)
	if !ok {
		return nil, false
	}
	return &plan.Select{Pred: predicate.NewAnd(sel.Pred, c.pred)}, true
}

func (c *selectConstraint) fresh() plan.Query {
	return &plan.Select{Pred: c.pred}
}

// WithSelect appends pred to p, scoped to table, merging it with an
// existing trailing Select (AND) or pushing it beneath a trailing join
// that does not reference table (spec.md §4.4.1).
func WithSelect(p *plan.QueryPlan, table schema.TableId, pred predicate.Predicate) *plan.QueryPlan {
	return pushConstraint(p, &selectConstraint{t: table, pred: pred})
}

type boundConstraint struct {
	t         schema.TableId
	columns   schema.ColList
	value     interface{}
	inclusive bool
	upper     bool
	log       logrus.FieldLogger
}

func (c *boundConstraint) table() schema.TableId { return c.t }

func (c *boundConstraint) mergeInto(last plan.Query) (plan.Query, bool) {
	scan, ok := last.(*plan.IndexScan)
	if !ok || scan.Table != c.t || !scan.Columns.Equal(c.columns) {
		return nil, false
	}
	out := *scan
	b := boundFrom(c.value, c.inclusive)
	if c.upper {
		if scan.Upper.Kind != plan.Unbounded {
			return nil, false
		}
		out.Upper = b
	} else {
		if scan.Lower.Kind != plan.Unbounded {
			return nil, false
		}
		out.Lower = b
	}

	lowerOp := index.IndexOp{Kind: index.OpLowerBound, Columns: c.columns, Value: out.Lower.Value, Inclusive: out.Lower.Kind == plan.Inclusive}
	upperOp := index.IndexOp{Kind: index.OpUpperBound, Columns: c.columns, Value: out.Upper.Value, Inclusive: out.Upper.Kind == plan.Inclusive}
	_, out.Degenerate = index.MergeBounds(lowerOp, upperOp)
	if out.Degenerate && c.log != nil {
		// §4.4.1 "Equal-excluded degeneracy": the merged range can never
		// match a row. Emitted anyway, per §7/§9 open question (a).
		c.log.Warnf("analyzer: merged index scan on table %d columns %v has an equal-excluded empty range", c.t, c.columns)
	}
	return &out, true
}

func (c *boundConstraint) fresh() plan.Query {
	b := boundFrom(c.value, c.inclusive)
	scan := &plan.IndexScan{Table: c.t, Columns: c.columns, Lower: plan.UnboundedBound(), Upper: plan.UnboundedBound()}
	if c.upper {
		scan.Upper = b
	} else {
		scan.Lower = b
	}
	return scan
}

func boundFrom(v interface{}, inclusive bool) plan.Bound {
	if inclusive {
		return plan.InclusiveBound(v)
	}
	return plan.ExclusiveBound(v)
}

// WithIndexLowerBound appends (or merges into an existing IndexScan's
// unbounded lower side) a lower bound on table/columns.
func WithIndexLowerBound(p *plan.QueryPlan, table schema.TableId, columns schema.ColList, value interface{}, inclusive bool, log logrus.FieldLogger) *plan.QueryPlan {
	return pushConstraint(p, &boundConstraint{t: table, columns: columns, value: value, inclusive: inclusive, upper: false, log: log})
}

// WithIndexUpperBound is the upper-bound counterpart of WithIndexLowerBound.
func WithIndexUpperBound(p *plan.QueryPlan, table schema.TableId, columns schema.ColList, value interface{}, inclusive bool, log logrus.FieldLogger) *plan.QueryPlan {
	return pushConstraint(p, &boundConstraint{t: table, columns: columns, value: value, inclusive: inclusive, upper: true, log: log})
}

// WithIndexEq appends an equality IndexScan (a degenerate range with equal
// inclusive bounds) scoped to table/columns.
func WithIndexEq(p *plan.QueryPlan, table schema.TableId, columns schema.ColList, value interface{}) *plan.QueryPlan {
	return pushConstraint(p, &eqConstraint{t: table, columns: columns, value: value})
}

type eqConstraint struct {
	t       schema.TableId
	columns schema.ColList
	value   interface{}
}

func (c *eqConstraint) table() schema.TableId { return c.t }

// An equality constraint never merges with an existing op: two distinct
// equalities on the same columns would have to be ANDed into a range
// (impossible for Eq, which is not one-sided), so it always appends fresh,
// per §4.4.1's "otherwise append a new ... IndexScan" fallback.
func (c *eqConstraint) mergeInto(plan.Query) (plan.Query, bool) { return nil, false }

func (c *eqConstraint) fresh() plan.Query {
	b := plan.InclusiveBound(c.value)
	return &plan.IndexScan{Table: c.t, Columns: c.columns, Lower: b, Upper: b}
}

// ---- 4.4.2 semijoin recognition -----------------------------------------

// trySemiJoin implements §4.4.2: JoinInner(semi:false) immediately followed
// by a pure wildcard Project over the join's own source collapses to a
// plain semijoin with the Project dropped.
func trySemiJoin(p *plan.QueryPlan) *plan.QueryPlan {
	if len(p.Ops) < 2 {
		return p
	}
	join, ok := p.Ops[0].(*plan.JoinInner)
	if !ok || join.Semi {
		return p
	}
	proj, ok := p.Ops[1].(*plan.Project)
	if !ok || proj.WildcardTable == nil {
		return p
	}
	if len(proj.Columns) != 1 || !proj.Columns[0].Wildcard {
		return p
	}
	srcTable, isDb := plan.TableIdOf(p.Source)
	if !isDb || *proj.WildcardTable != srcTable {
		return p
	}

	newJoin := &plan.JoinInner{Rhs: join.Rhs, ColLhs: join.ColLhs, ColRhs: join.ColRhs, Semi: true}
	rest := append([]plan.Query{newJoin}, p.Ops[2:]...)
	return &plan.QueryPlan{Source: p.Source, Ops: rest}
}

// ---- 4.4.3 index-join materialization -----------------------------------

// tryIndexJoin implements §4.4.3: a lone semijoin whose LHS join column is
// indexed on the (DbTable) source, and whose probe side still needs
// filtering, becomes a single IndexJoin.
func tryIndexJoin(p *plan.QueryPlan) *plan.QueryPlan {
	if len(p.Ops) != 1 {
		return p
	}
	join, ok := p.Ops[0].(*plan.JoinInner)
	if !ok || !join.Semi {
		return p
	}
	if _, isDb := plan.TableIdOf(p.Source); !isDb {
		return p
	}
	if len(join.Rhs.Ops) == 0 {
		return p
	}
	hdr := p.Source.Header()
	idxCol, ok := hdr.ColumnByName(join.ColLhs.Name)
	if !ok {
		return p
	}
	if _, indexed := hdr.IndexedColumn(idxCol); !indexed {
		return p
	}

	ij := &plan.IndexJoin{
		ProbeSide:       join.Rhs,
		ProbeField:      join.ColRhs,
		IndexSide:       p.Source,
		IndexCol:        idxCol,
		ReturnIndexRows: true,
	}
	return &plan.QueryPlan{Source: p.Source, Ops: []plan.Query{ij}}
}

// ---- 4.4.4 index-join reordering ----------------------------------------

// reorderIndexJoin implements §4.4.4: when the current probe side itself
// has an index on the join field and the current index side is small (or
// an in-memory delta source), swap index/probe roles so the small or delta
// side always does the probing.
func reorderIndexJoin(p *plan.QueryPlan, oracle RowCountOracle, smallTableThreshold int64) *plan.QueryPlan {
	if len(p.Ops) != 1 {
		return p
	}
	ij, ok := p.Ops[0].(*plan.IndexJoin)
	if !ok {
		return p
	}

	probeHdr := ij.ProbeSide.Source.Header()
	probeCol, ok := probeHdr.ColumnByName(ij.ProbeField.Name)
	if !ok {
		return p
	}
	if _, hasIdx := probeHdr.IndexedColumn(probeCol); !hasIdx {
		return p
	}

	oldIndexHdr := ij.IndexSide.Header()
	oldIndexColName, ok := columnName(oldIndexHdr, ij.IndexCol)
	if !ok {
		return p
	}

	_, indexSideIsDelta := ij.IndexSide.(*plan.InMemory)
	small := false
	if table, isDb := plan.TableIdOf(ij.IndexSide); isDb && oracle != nil {
		small = oracle(table, ij.IndexSide.Header().Name) <= smallTableThreshold
	}
	if !small && !indexSideIsDelta {
		return p
	}

	newProbeSide := &plan.QueryPlan{Source: ij.IndexSide}
	if ij.IndexSelect != nil {
		newProbeSide = newProbeSide.WithSelectRaw(ij.IndexSelect)
	}

	// Filters that used to live on the displaced probe side fold into the
	// new index side's residual select (only Select ops carry a
	// predicate; other op kinds on a probe side are not expected at this
	// stage and are dropped, since §4.4.3 only materializes an IndexJoin
	// from a probe side whose ops are plain filtering).
	var folded []predicate.Predicate
	for _, op := range ij.ProbeSide.Ops {
		if sel, ok := op.(*plan.Select); ok {
			folded = append(folded, sel.Pred)
		}
	}
	var indexSelect predicate.Predicate
	if len(folded) > 0 {
		indexSelect = predicate.AndAll(folded)
	}

	swapped := &plan.IndexJoin{
		ProbeSide:       newProbeSide,
		ProbeField:      &predicate.Field{Name: oldIndexColName},
		IndexSide:       ij.ProbeSide.Source,
		IndexSelect:     indexSelect,
		IndexCol:        probeCol,
		ReturnIndexRows: !ij.ReturnIndexRows,
	}
	return &plan.QueryPlan{Source: swapped.IndexSide, Ops: []plan.Query{swapped}}
}

// columnName resolves id back to its declared name on hdr — the inverse of
// schema.Header.ColumnByName, needed when a rewrite swaps which side of a
// join is probed and must name the new probe field.
func columnName(hdr *schema.Header, id schema.ColId) (string, bool) {
	for _, c := range hdr.Columns {
		if c.Id == id {
			return c.Name, true
		}
	}
	return "", false
}

// defaultSmallTableThreshold is spec.md §4.4.4's literal constant, used by
// Optimize. Callers driven by config.Config use OptimizeWithThreshold
// instead.
const defaultSmallTableThreshold = 500

// ---- 4.4.5 residual select lowering -------------------------------------

// lowerAllResidualSelects runs index selection (§4.3) against p.Source's
// header for every top-level Select in p, emitting IndexScans for index
// hits and folding any leftover constraints into one residual Select. A
// Select whose (ops, consumed) pair is a structural repeat of one already
// lowered at this level is skipped outright via index.Fingerprint, per
// §4.4.5's "deduplicated by the (field, op) consumed-set across schemas".
func lowerAllResidualSelects(p *plan.QueryPlan, log logrus.FieldLogger) *plan.QueryPlan {
	hdr := p.Source.Header()
	table := sourceTableId(p.Source)

	out := &plan.QueryPlan{Source: p.Source}
	seen := map[uint64]bool{}
	for _, op := range p.Ops {
		sel, ok := op.(*plan.Select)
		if !ok {
			out = out.Append(op)
			continue
		}

		conjuncts := predicate.FlattenAnd(sel.Pred)
		ops, consumed := index.SelectIndexes(hdr, conjuncts)

		if fp, err := index.Fingerprint(ops, consumed); err == nil {
			if seen[fp] {
				// Same index ops serving the same (field, op) consumed set
				// as an earlier Select at this level: re-emitting it would
				// just duplicate the IndexScans/residual Select already
				// produced.
				continue
			}
			seen[fp] = true
		}

		var residual []predicate.Predicate
		for _, iop := range ops {
			switch iop.Kind {
			case index.OpEq:
				out = WithIndexEq(out, table, iop.Columns, iop.Value)
			case index.OpLowerBound:
				out = WithIndexLowerBound(out, table, iop.Columns, iop.Value, iop.Inclusive, log)
			case index.OpUpperBound:
				out = WithIndexUpperBound(out, table, iop.Columns, iop.Value, iop.Inclusive, log)
			case index.OpScan:
				residual = append(residual, iop.Scan)
			}
		}
		if len(residual) > 0 {
			out = WithSelect(out, table, predicate.AndAll(residual))
		}
	}
	return out
}

// describe renders a plan's operator shape for the §4.4.6 fixpoint hash
// and for diagnostics; it is not a serialization format.
func describe(p *plan.QueryPlan) string {
	s := "src"
	for _, op := range p.Ops {
		switch o := op.(type) {
		case *plan.IndexScan:
			s += fmt.Sprintf("|idxscan%v", o.Columns)
		case *plan.Select:
			s += "|select"
		case *plan.Project:
			s += "|project"
		case *plan.JoinInner:
			s += "|join"
			if o.Semi {
				s += ":semi"
			}
			s += describe(o.Rhs)
		case *plan.IndexJoin:
			s += "|ijoin"
			s += describe(o.ProbeSide)
		}
	}
	return s
}
