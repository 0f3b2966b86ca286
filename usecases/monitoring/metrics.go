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

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	CommitModeSync    = "sync"
	CommitModeDelayed = "delayed"
	CommitModeClose   = "close"
)

type Metrics struct {
	Commits        *prometheus.CounterVec
	CommitFailures *prometheus.CounterVec
	CommitDuration *prometheus.HistogramVec
	DelayedCommits *prometheus.CounterVec

	MergesStarted *prometheus.CounterVec
	MergesFailed  *prometheus.CounterVec
	MergeDuration *prometheus.HistogramVec

	WriterOpens        *prometheus.CounterVec
	OpenWriters        *prometheus.GaugeVec
	ForcedLockReleases *prometheus.CounterVec
	FailureEvents      *prometheus.CounterVec
	RemoteBulkItems    *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg. A nil reg disables export.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = noop
	}
	f := promauto.With(reg)

	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_commits_total",
			Help: "Number of successful index commits",
		}, []string{"index", "mode"}), // mode: sync/delayed/close
		CommitFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_commit_failures_total",
			Help: "Number of failed index commits",
		}, []string{"index"}),
		CommitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "segmentwriter_commit_duration_seconds",
			Help:    "Duration of index commits",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"index"}),
		DelayedCommits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_delayed_commits_scheduled_total",
			Help: "Number of times a delayed commit was scheduled",
		}, []string{"index"}),
		MergesStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_merges_started_total",
			Help: "Number of segment merges started",
		}, []string{"index"}),
		MergesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_merges_failed_total",
			Help: "Number of segment merges which failed",
		}, []string{"index"}),
		MergeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "segmentwriter_merge_duration_seconds",
			Help:    "Duration of segment merges",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"index"}),
		WriterOpens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_writer_opens_total",
			Help: "Number of index writers created",
		}, []string{"index"}),
		OpenWriters: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "segmentwriter_writers_open",
			Help: "Number of currently open index writers",
		}, []string{"index"}),
		ForcedLockReleases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_forced_lock_releases_total",
			Help: "Number of forced releases of an index writer lock",
		}, []string{"index"}),
		FailureEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_failure_events_total",
			Help: "Number of events reported to the failure handler",
		}, []string{"index", "operation"}),
		RemoteBulkItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "segmentwriter_remote_bulk_items_total",
			Help: "Number of bulk items sent to the remote backend",
		}, []string{"index", "status"}), // status: flushed/failed
	}
}

// IndexMetrics binds Metrics to one index. All methods are safe to call on a
// nil receiver.
type IndexMetrics struct {
	m     *Metrics
	index string
}

func (m *Metrics) ForIndex(index string) *IndexMetrics {
	if m == nil {
		return nil
	}
	return &IndexMetrics{m: m, index: index}
}

func (im *IndexMetrics) ObserveCommit(mode string, took time.Duration, err error) {
	if im == nil {
		return
	}

	if err != nil {
		im.m.CommitFailures.WithLabelValues(im.index).Inc()
		return
	}
	im.m.Commits.WithLabelValues(im.index, mode).Inc()
	im.m.CommitDuration.WithLabelValues(im.index).Observe(took.Seconds())
}

func (im *IndexMetrics) DelayedCommitScheduled() {
	if im == nil {
		return
	}

	im.m.DelayedCommits.WithLabelValues(im.index).Inc()
}

func (im *IndexMetrics) MergeStarted() {
	if im == nil {
		return
	}

	im.m.MergesStarted.WithLabelValues(im.index).Inc()
}

func (im *IndexMetrics) MergeFinished(took time.Duration, failed bool) {
	if im == nil {
		return
	}

	if failed {
		im.m.MergesFailed.WithLabelValues(im.index).Inc()
	}
	im.m.MergeDuration.WithLabelValues(im.index).Observe(took.Seconds())
}

func (im *IndexMetrics) WriterOpened() {
	if im == nil {
		return
	}

	im.m.WriterOpens.WithLabelValues(im.index).Inc()
	im.m.OpenWriters.WithLabelValues(im.index).Inc()
}

func (im *IndexMetrics) WriterClosed() {
	if im == nil {
		return
	}

	im.m.OpenWriters.WithLabelValues(im.index).Dec()
}

func (im *IndexMetrics) ForcedLockRelease() {
	if im == nil {
		return
	}

	im.m.ForcedLockReleases.WithLabelValues(im.index).Inc()
}

func (im *IndexMetrics) BulkItem(failed bool) {
	if im == nil {
		return
	}

	status := "flushed"
	if failed {
		status = "failed"
	}
	im.m.RemoteBulkItems.WithLabelValues(im.index, status).Inc()
}
