//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// pebbleCollector exports engine internals of one open writer. It is
// registered while the writer is open and removed on close.
type pebbleCollector struct {
	w *pebbleWriter

	segments        *prometheus.Desc
	segmentsSize    *prometheus.Desc
	compactionCount *prometheus.Desc
	estimatedDebt   *prometheus.Desc
	inProgressBytes *prometheus.Desc
	memtableSize    *prometheus.Desc
	memtableCount   *prometheus.Desc
}

func newPebbleCollector(w *pebbleWriter, indexName string) *pebbleCollector {
	labels := prometheus.Labels{"index": indexName}
	return &pebbleCollector{
		w: w,

		segments: prometheus.NewDesc(
			"segmentwriter_engine_unmerged_segments",
			"Number of flushed segments waiting to be merged",
			nil, labels,
		),
		segmentsSize: prometheus.NewDesc(
			"segmentwriter_engine_unmerged_segments_bytes",
			"Size of flushed segments waiting to be merged",
			nil, labels,
		),
		compactionCount: prometheus.NewDesc(
			"segmentwriter_engine_compactions_total",
			"Total number of compactions performed by the engine",
			nil, labels,
		),
		estimatedDebt: prometheus.NewDesc(
			"segmentwriter_engine_compaction_debt_bytes",
			"Estimated number of bytes that need to be compacted to reach a stable state",
			nil, labels,
		),
		inProgressBytes: prometheus.NewDesc(
			"segmentwriter_engine_compaction_in_progress_bytes",
			"Number of bytes being compacted currently",
			nil, labels,
		),
		memtableSize: prometheus.NewDesc(
			"segmentwriter_engine_buffer_size_bytes",
			"Size of the in-memory buffer holding uncommitted changes",
			nil, labels,
		),
		memtableCount: prometheus.NewDesc(
			"segmentwriter_engine_buffers",
			"Number of in-memory buffers",
			nil, labels,
		),
	}
}

func (pc *pebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.segments
	ch <- pc.segmentsSize
	ch <- pc.compactionCount
	ch <- pc.estimatedDebt
	ch <- pc.inProgressBytes
	ch <- pc.memtableSize
	ch <- pc.memtableCount
}

func (pc *pebbleCollector) Collect(ch chan<- prometheus.Metric) {
	release, err := pc.w.acquire()
	if err != nil {
		return
	}
	metrics := pc.w.db.Metrics()
	release()

	ch <- prometheus.MustNewConstMetric(pc.segments, prometheus.GaugeValue,
		float64(metrics.Levels[0].NumFiles))
	ch <- prometheus.MustNewConstMetric(pc.segmentsSize, prometheus.GaugeValue,
		float64(metrics.Levels[0].Size))
	ch <- prometheus.MustNewConstMetric(pc.compactionCount, prometheus.CounterValue,
		float64(metrics.Compact.Count))
	ch <- prometheus.MustNewConstMetric(pc.estimatedDebt, prometheus.GaugeValue,
		float64(metrics.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(pc.inProgressBytes, prometheus.GaugeValue,
		float64(metrics.Compact.InProgressBytes))
	ch <- prometheus.MustNewConstMetric(pc.memtableSize, prometheus.GaugeValue,
		float64(metrics.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(pc.memtableCount, prometheus.GaugeValue,
		float64(metrics.MemTable.Count))
}
