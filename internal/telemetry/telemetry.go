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

// Package telemetry implements the two process-global max-observed tables
// spec.md §5 and §9 mention in passing: maximum-observed reducer CPU time
// and maximum-observed query compile time, keyed by reducer/query name.
package telemetry

import "sync"

// MaxObserved is a mutex-guarded map from key to the largest value ever
// recorded for it. It never shrinks except on Clear.
type MaxObserved struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewMaxObserved returns an empty MaxObserved table.
func NewMaxObserved() *MaxObserved {
	return &MaxObserved{values: make(map[string]float64)}
}

// Record updates key's maximum if value is larger than what's on record.
func (m *MaxObserved) Record(key string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.values[key]; !ok || value > cur {
		m.values[key] = value
	}
}

// Max returns key's current maximum, and whether anything has been
// recorded for it at all.
func (m *MaxObserved) Max(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Clear discards every recorded maximum, restarting the observation
// window (config.Config's telemetry clear interval drives how often a
// caller invokes this).
func (m *MaxObserved) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]float64)
}

// ReducerCPUTime is the process-global maximum-observed reducer CPU time
// table.
var ReducerCPUTime = NewMaxObserved()

// QueryCompileTime is the process-global maximum-observed query compile
// time table.
var QueryCompileTime = NewMaxObserved()
