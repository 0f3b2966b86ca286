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

package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/esvector"
	"github.com/weaviate/segmentwriter/entities/document"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/usecases/config"
	"github.com/weaviate/segmentwriter/usecases/indexing"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

// backend receives the batches of one index.
type backend interface {
	Apply(ctx context.Context, batch document.Batch) error
	// Finish makes everything applied durable and releases the backend.
	Finish(ctx context.Context, forceMerge bool) error
}

type embeddedBackend struct {
	manager *indexing.Manager
	index   *indexing.Index
	logger  logrus.FieldLogger
}

func newEmbeddedBackend(indexName string, props config.PropertySource, reg prometheus.Registerer,
	handler failure.Handler, logger logrus.FieldLogger,
) (*embeddedBackend, error) {
	manager := indexing.NewManager(indexing.ManagerConfig{
		Properties:     props,
		Registerer:     reg,
		FailureHandler: handler,
	}, logger)

	index, err := manager.Index(indexName)
	if err != nil {
		return nil, err
	}
	return &embeddedBackend{manager: manager, index: index, logger: logger}, nil
}

func (b *embeddedBackend) Apply(ctx context.Context, batch document.Batch) error {
	if err := b.index.Mutate(ctx, batch); err != nil {
		return err
	}
	return b.index.CommitOrDelay(ctx)
}

func (b *embeddedBackend) Finish(ctx context.Context, forceMerge bool) error {
	if forceMerge {
		if err := b.index.ForceMergeToSingleSegment(ctx); err != nil {
			return errors.Wrap(err, "force merge")
		}
	}
	return b.manager.Shutdown(ctx)
}

type elasticsearchBackend struct {
	link         *esvector.Link
	orchestrator *esvector.Orchestrator
	indexName    string
	logger       logrus.FieldLogger
}

func newElasticsearchBackend(ctx context.Context, indexName string, props config.PropertySource,
	reg prometheus.Registerer, handler failure.Handler, logger logrus.FieldLogger,
) (*elasticsearchBackend, error) {
	cfg, err := config.BuildElasticsearchConfig(props)
	if err != nil {
		return nil, err
	}

	var metrics *monitoring.Metrics
	if reg != nil {
		metrics = monitoring.NewMetrics(reg)
	}
	link := esvector.NewLink(cfg, monitoring.FailureHandler(metrics, handler), metrics, logger)
	if _, err := link.RegisterIndex(indexName); err != nil {
		return nil, err
	}
	if err := link.OnStart(ctx); err != nil {
		return nil, err
	}

	b := &elasticsearchBackend{link: link, indexName: indexName, logger: logger}
	if err := b.init(ctx); err != nil {
		return nil, enterrors.WithSuppressed(err, link.OnStop(ctx))
	}
	return b, nil
}

func (b *elasticsearchBackend) init(ctx context.Context) error {
	works, err := b.link.Works()
	if err != nil {
		return err
	}
	created, err := works.CreateIndexIfMissing(ctx, b.indexName)
	if err != nil {
		return err
	}
	if created {
		b.logger.WithField("index", b.indexName).Info("created elasticsearch index")
	}

	b.orchestrator, err = b.link.Orchestrator()
	return err
}

func (b *elasticsearchBackend) Apply(ctx context.Context, batch document.Batch) error {
	return b.orchestrator.SubmitBatch(ctx, b.indexName, batch)
}

func (b *elasticsearchBackend) Finish(ctx context.Context, forceMerge bool) error {
	if forceMerge {
		b.logger.Warn("force merge is only supported by the embedded backend, ignoring it")
	}

	if err := b.link.OnStop(ctx); err != nil {
		return err
	}
	stats := b.orchestrator.Stats()
	if stats.NumFailed > 0 {
		return errors.Errorf("%d of %d documents were rejected by elasticsearch",
			stats.NumFailed, stats.NumAdded)
	}
	return nil
}
