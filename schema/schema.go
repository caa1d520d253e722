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

// Package schema holds the shared catalog types the plan, predicate, index
// and auth packages all need to agree on: table/column identity, the
// declared index set, and the minimal visibility/ownership policy of §4.5.
package schema

import "sort"

// TableId identifies a table, whether backed by the database (DbTable) or
// supplied for the duration of one plan execution (InMemory).
type TableId uint32

// ColId identifies a column within a single table's Header.
type ColId uint32

// ColList is an ordered list of column ids, the key a composite index is
// declared over. Order matters: it is the seek-key prefix order.
type ColList []ColId

// Head returns the first (leading) column of the list.
func (cl ColList) Head() ColId {
	return cl[0]
}

// Equal reports whether cl and other name the same columns in the same
// order.
func (cl ColList) Equal(other ColList) bool {
	if len(cl) != len(other) {
		return false
	}
	for i := range cl {
		if cl[i] != other[i] {
			return false
		}
	}
	return true
}

// Access is a table's visibility to non-owner callers.
type Access int

const (
	// Public tables are readable by any caller (§4.5).
	Public Access = iota
	// Private tables are only readable by their owner.
	Private
)

// IndexDecl is one declared index, keyed by an ordered column list.
type IndexDecl struct {
	Columns ColList
}

// ColumnInfo names one column of a Header.
type ColumnInfo struct {
	Id   ColId
	Name string
}

// Header describes a table (or in-memory source)'s shape: its columns, its
// declared indexes, and the access-gate metadata needed to evaluate §4.5.
type Header struct {
	TableId TableId
	Name    string
	Columns []ColumnInfo
	Indexes []IndexDecl
	Owner   string
	Access  Access
}

// ColumnByName resolves a column name to its id.
func (h *Header) ColumnByName(name string) (ColId, bool) {
	for _, c := range h.Columns {
		if c.Name == name {
			return c.Id, true
		}
	}
	return 0, false
}

// HasIndex reports whether cl, taken as an ordered column list, names
// exactly one of h's declared indexes.
func (h *Header) HasIndex(cl ColList) bool {
	for _, idx := range h.Indexes {
		if idx.Columns.Equal(cl) {
			return true
		}
	}
	return false
}

// IndexedColumn reports whether col leads (is the head of) any declared
// index on h, and returns the longest such index — used by semijoin ->
// index-join materialization (§4.4.3) and index-join reordering (§4.4.4),
// both of which only need to know "is there an index I can seek on col".
func (h *Header) IndexedColumn(col ColId) (IndexDecl, bool) {
	best := -1
	for i, idx := range h.Indexes {
		if len(idx.Columns) == 0 || idx.Columns.Head() != col {
			continue
		}
		if best == -1 || len(h.Indexes[i].Columns) > len(h.Indexes[best].Columns) {
			best = i
		}
	}
	if best == -1 {
		return IndexDecl{}, false
	}
	return h.Indexes[best], true
}

// IndexesByLengthDesc returns h's declared indexes ordered longest-first,
// the deterministic tie-break §4.3 and §9 call for: "longest-composite-
// first is a simple, deterministic heuristic that prefers covering more
// columns in one seek."
func (h *Header) IndexesByLengthDesc() []IndexDecl {
	out := make([]IndexDecl, len(h.Indexes))
	copy(out, h.Indexes)
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Columns) > len(out[j].Columns)
	})
	return out
}
