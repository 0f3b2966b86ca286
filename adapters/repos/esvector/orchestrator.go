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

package esvector

import (
	"context"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/usecases/config"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

const bulkOperation = "Elasticsearch bulk indexing"

// Orchestrator sends works to the cluster in bulk requests. Failures happen
// after Submit returned and are reported to the failure handler.
type Orchestrator struct {
	indexer esutil.BulkIndexer
	works   *WorkFactory
	handler failure.Handler
	metrics *monitoring.Metrics
	logger  logrus.FieldLogger

	mu      sync.Mutex
	byIndex map[string]*monitoring.IndexMetrics
}

func newOrchestrator(client *elasticsearch.Client, works *WorkFactory, cfg config.Elasticsearch,
	handler failure.Handler, metrics *monitoring.Metrics, logger logrus.FieldLogger,
) (*Orchestrator, error) {
	o := &Orchestrator{
		works:   works,
		handler: handler,
		metrics: metrics,
		logger:  logger.WithField("action", "elasticsearch_bulk"),
		byIndex: map[string]*monitoring.IndexMetrics{},
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    cfg.Workers,
		FlushBytes:    cfg.FlushBytes,
		FlushInterval: cfg.FlushInterval,
		OnError:       o.onFlushError,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bulk indexer")
	}
	o.indexer = indexer
	return o, nil
}

// Submit queues one work of the given index. Purging an index is not a bulk
// item, it runs synchronously and does not wait for items still queued.
func (o *Orchestrator) Submit(ctx context.Context, indexName string, work document.Work) error {
	if work.Op == document.OperationDeleteAll {
		return o.works.Purge(ctx, indexName)
	}

	item, err := o.works.BulkItem(indexName, work)
	if err != nil {
		return err
	}

	metrics := o.indexMetrics(indexName)
	item.OnSuccess = func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
		metrics.BulkItem(false)
	}
	item.OnFailure = func(_ context.Context, item esutil.BulkIndexerItem,
		res esutil.BulkIndexerResponseItem, err error,
	) {
		metrics.BulkItem(true)
		o.handler.Handle(failure.Context{
			IndexName:        indexName,
			FailingOperation: bulkOperation,
			Cause:            errors.Wrapf(itemError(res, err), "%s document %q", item.Action, item.DocumentID),
		})
	}

	if err := o.indexer.Add(ctx, item); err != nil {
		return errors.Wrapf(err, "queue %s of document %q", item.Action, item.DocumentID)
	}
	return nil
}

func (o *Orchestrator) SubmitBatch(ctx context.Context, indexName string, batch document.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	for _, work := range batch {
		if err := o.Submit(ctx, indexName, work); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) Stats() esutil.BulkIndexerStats {
	return o.indexer.Stats()
}

// Close flushes pending items and waits for the workers.
func (o *Orchestrator) Close(ctx context.Context) error {
	if err := o.indexer.Close(ctx); err != nil {
		return errors.Wrap(err, "close bulk indexer")
	}

	stats := o.indexer.Stats()
	o.logger.WithFields(logrus.Fields{
		"added":    stats.NumAdded,
		"flushed":  stats.NumFlushed,
		"failed":   stats.NumFailed,
		"requests": stats.NumRequests,
	}).Debug("bulk indexer closed")
	return nil
}

func (o *Orchestrator) indexMetrics(indexName string) *monitoring.IndexMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, ok := o.byIndex[indexName]
	if !ok {
		m = o.metrics.ForIndex(indexName)
		o.byIndex[indexName] = m
	}
	return m
}

// onFlushError receives failures of whole bulk requests, which cannot be
// attributed to a single index.
func (o *Orchestrator) onFlushError(_ context.Context, err error) {
	o.handler.Handle(failure.Context{
		FailingOperation: bulkOperation,
		Cause:            err,
	})
}

func itemError(res esutil.BulkIndexerResponseItem, err error) error {
	if err != nil {
		return err
	}
	if res.Error.Type == "" {
		return errors.Errorf("bulk item failed with status %d", res.Status)
	}
	return errors.Errorf("bulk item failed with status %d: %s: %s",
		res.Status, res.Error.Type, res.Error.Reason)
}
