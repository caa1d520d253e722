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

// Package metrics exposes the counters and histograms of spec.md §6's
// "Metrics (out)" external interface, registered against Prometheus's
// default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"relquery/internal/telemetry"
)

// txnTimeBuckets is the exact bucket list spec.md §6 specifies, in
// seconds.
var txnTimeBuckets = []float64{
	1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 1e-2, 2.5e-2,
	5e-2, 1e-1, 2.5e-1, 5e-1, 1.0, 2.5, 5.0, 10.0,
}

// labelNames is the shared label set spec.md §6 calls for: "database id,
// table id/name, workload type, reducer or query name".
var labelNames = []string{"database_id", "table_id", "table_name", "workload", "name"}

var (
	NumTableRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "num_table_rows",
		Help: "Current row count of a table.",
	}, labelNames)

	NumRowsInsertedCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_rows_inserted_cumulative",
		Help: "Cumulative count of rows inserted.",
	}, labelNames)

	NumRowsDeletedCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_rows_deleted_cumulative",
		Help: "Cumulative count of rows deleted.",
	}, labelNames)

	NumRowsFetchedCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_rows_fetched_cumulative",
		Help: "Cumulative count of rows fetched.",
	}, labelNames)

	NumIndexKeysScannedCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_index_keys_scanned_cumulative",
		Help: "Cumulative count of index keys scanned.",
	}, labelNames)

	NumIndexSeeksCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_index_seeks_cumulative",
		Help: "Cumulative count of index seeks performed.",
	}, labelNames)

	NumTxnsCumulative = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "num_txns_cumulative",
		Help: "Cumulative count of transactions executed.",
	}, labelNames)

	TxnElapsedTimeSec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txn_elapsed_time_sec",
		Help:    "Wall-clock elapsed time of a transaction, in seconds.",
		Buckets: txnTimeBuckets,
	}, labelNames)

	TxnCPUTimeSec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "txn_cpu_time_sec",
		Help:    "CPU time consumed by a transaction, in seconds.",
		Buckets: txnTimeBuckets,
	}, labelNames)

	TxnCPUTimeSecMax = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "txn_cpu_time_sec_max",
		Help: "Maximum observed CPU time of any transaction, in seconds.",
	}, labelNames)
)

func init() {
	prometheus.MustRegister(
		NumTableRows,
		NumRowsInsertedCumulative,
		NumRowsDeletedCumulative,
		NumRowsFetchedCumulative,
		NumIndexKeysScannedCumulative,
		NumIndexSeeksCumulative,
		NumTxnsCumulative,
		TxnElapsedTimeSec,
		TxnCPUTimeSec,
		TxnCPUTimeSecMax,
	)
}

// Labels bundles the label values shared by every metric above.
type Labels struct {
	DatabaseId string
	TableId    string
	TableName  string
	Workload   string
	Name       string
}

func (l Labels) values() prometheus.Labels {
	return prometheus.Labels{
		"database_id": l.DatabaseId,
		"table_id":    l.TableId,
		"table_name":  l.TableName,
		"workload":    l.Workload,
		"name":        l.Name,
	}
}

// ObserveTxn records one completed transaction's elapsed and CPU time, and
// keeps internal/telemetry's max-observed reducer-CPU-time map current in
// the same call (SPEC_FULL.md §D.3).
func ObserveTxn(l Labels, elapsedSec, cpuSec float64) {
	NumTxnsCumulative.With(l.values()).Inc()
	TxnElapsedTimeSec.With(l.values()).Observe(elapsedSec)
	TxnCPUTimeSec.With(l.values()).Observe(cpuSec)

	key := l.Name
	telemetry.ReducerCPUTime.Record(key, cpuSec)
	if max, ok := telemetry.ReducerCPUTime.Max(key); ok {
		TxnCPUTimeSecMax.With(l.values()).Set(max)
	}
}

// ObserveCompileTime keeps internal/telemetry's max-observed query-compile-
// time map current for key (SPEC_FULL.md §D.3). It does not itself publish
// a Prometheus series: compile time is not named among §6's metrics, but
// the max-observed map backs an internal diagnostic surface.
func ObserveCompileTime(key string, seconds float64) {
	telemetry.QueryCompileTime.Record(key, seconds)
}
