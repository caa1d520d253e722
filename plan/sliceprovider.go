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

package plan

import (
	"io"
	"sync"

	"relquery/predicate"
)

// SliceProvider is a minimal, in-memory SourceProvider backed by plain
// row slices. It exists for tests and small embedders that do not have a
// full executor handy; production callers supply their own provider over
// the storage engine (out of scope here, per spec.md §1).
type SliceProvider struct {
	mu   sync.Mutex
	data map[SourceId][]predicate.Row
}

// NewSliceProvider builds a provider over the given id->rows map. Each id
// may be taken exactly once, per the SourceProvider contract.
func NewSliceProvider(data map[SourceId][]predicate.Row) *SliceProvider {
	return &SliceProvider{data: data}
}

// TakeSource implements SourceProvider.
func (p *SliceProvider) TakeSource(id SourceId) (RowIterator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, ok := p.data[id]
	if !ok {
		return nil, false
	}
	delete(p.data, id)
	return &sliceIterator{rows: rows}, true
}

type sliceIterator struct {
	rows []predicate.Row
	pos  int
}

func (it *sliceIterator) Next() (predicate.Row, error) {
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIterator) Close() error {
	it.rows = nil
	return nil
}
