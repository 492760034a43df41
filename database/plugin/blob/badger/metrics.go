// Copyright 2025 Blink Labs Software
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

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const badgerMetricNamePrefix = "database_blob_"

func (d *BlobStoreBadger) registerBlobMetrics() {
	factory := promauto.With(d.promRegistry)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "lsm_size_bytes",
			Help: "Size of the badger LSM tree in bytes",
		},
		func() float64 {
			lsm, _ := d.DB().Size()
			return float64(lsm)
		},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: badgerMetricNamePrefix + "vlog_size_bytes",
			Help: "Size of the badger value log in bytes",
		},
		func() float64 {
			_, vlog := d.DB().Size()
			return float64(vlog)
		},
	)
	factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "block_cache_hits_total",
			Help: "Total badger block cache hits",
		},
		func() float64 {
			m := d.DB().BlockCacheMetrics()
			if m == nil {
				return 0
			}
			return float64(m.Hits())
		},
	)
	factory.NewCounterFunc(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "block_cache_misses_total",
			Help: "Total badger block cache misses",
		},
		func() float64 {
			m := d.DB().BlockCacheMetrics()
			if m == nil {
				return 0
			}
			return float64(m.Misses())
		},
	)
	d.gcRewrites = factory.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "gc_rewrites_total",
			Help: "Total value log files rewritten by GC",
		},
	)
	d.txnConflicts = factory.NewCounter(
		prometheus.CounterOpts{
			Name: badgerMetricNamePrefix + "txn_conflicts_total",
			Help: "Total read-write transactions aborted by a commit conflict",
		},
	)
}
