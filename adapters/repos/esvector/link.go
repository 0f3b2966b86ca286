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

// Package esvector links indexes to a remote Elasticsearch cluster.
package esvector

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/usecases/config"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

var ErrLinkStopped = errors.New("elasticsearch link is stopped")

const component = "elasticsearch link"

// Link is the started-once, stopped-once connection to the cluster and the
// components which depend on the negotiated version.
type Link struct {
	cfg     config.Elasticsearch
	handler failure.Handler
	metrics *monitoring.Metrics
	logger  logrus.FieldLogger
	names   *IndexNamesRegistry

	// initial wait between version probes
	probeInterval time.Duration

	sync.RWMutex
	stopped      bool
	transport    *http.Transport
	client       *elasticsearch.Client
	version      Version
	dialect      *Dialect
	works        *WorkFactory
	orchestrator *Orchestrator
}

func NewLink(cfg config.Elasticsearch, handler failure.Handler, metrics *monitoring.Metrics,
	logger logrus.FieldLogger,
) *Link {
	logger = logger.WithField("component", "esvector")
	if handler == nil {
		handler = failure.NewLogHandler(logger)
	}
	return &Link{
		cfg:     cfg,
		handler: handler,
		metrics: metrics,
		logger:  logger,
		names:   NewIndexNamesRegistry(),
	}
}

// Names is usable before start, index names are pure configuration.
func (l *Link) Names() *IndexNamesRegistry {
	return l.names
}

// RegisterIndex registers the names of indexName under the configured
// layout strategy.
func (l *Link) RegisterIndex(indexName string) (IndexNames, error) {
	names, err := NamesFor(l.cfg.LayoutStrategy, indexName)
	if err != nil {
		return IndexNames{}, err
	}
	if err := l.names.Register(names); err != nil {
		return IndexNames{}, err
	}
	return names, nil
}

// OnStart connects to the cluster. Calling it again after a successful start
// does nothing.
func (l *Link) OnStart(ctx context.Context) error {
	l.Lock()
	defer l.Unlock()

	if l.stopped {
		return ErrLinkStopped
	}
	if l.client != nil {
		return nil
	}

	transport := newTransport()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: l.cfg.Hosts,
		Username:  l.cfg.Username,
		Password:  l.cfg.Password,
		APIKey:    l.cfg.APIKey,
		Transport: transport,
	})
	if err != nil {
		return errors.Wrap(err, "create elasticsearch client")
	}

	negotiator := &versionNegotiator{cfg: l.cfg, logger: l.logger, initialInterval: l.probeInterval}
	version, err := negotiator.negotiate(ctx, client)
	if err != nil {
		transport.CloseIdleConnections()
		return err
	}

	dialect := newDialect(version)
	works := newWorkFactory(client, dialect, l.names)
	orchestrator, err := newOrchestrator(client, works, l.cfg, l.handler, l.metrics, l.logger)
	if err != nil {
		transport.CloseIdleConnections()
		return err
	}

	l.transport = transport
	l.client = client
	l.version = version
	l.dialect = dialect
	l.works = works
	l.orchestrator = orchestrator

	l.logger.WithFields(logrus.Fields{
		"hosts":   l.cfg.Hosts,
		"dialect": dialect.Name(),
	}).Info("elasticsearch link started")
	return nil
}

// OnStop releases everything in reverse order of creation. It may be called
// without a prior start and more than once.
func (l *Link) OnStop(ctx context.Context) error {
	l.Lock()
	defer l.Unlock()

	wasStarted := l.client != nil
	l.stopped = true

	var err error
	if l.orchestrator != nil {
		err = l.orchestrator.Close(ctx)
		l.orchestrator = nil
	}
	l.works = nil
	l.dialect = nil
	l.client = nil
	if l.transport != nil {
		l.transport.CloseIdleConnections()
		l.transport = nil
	}

	if wasStarted {
		l.logger.Info("elasticsearch link stopped")
	}
	return err
}

func (l *Link) Client() (*elasticsearch.Client, error) {
	l.RLock()
	defer l.RUnlock()
	if l.client == nil {
		return nil, enterrors.NewErrNotStarted(component)
	}
	return l.client, nil
}

func (l *Link) Version() (Version, error) {
	l.RLock()
	defer l.RUnlock()
	if l.client == nil {
		return Version{}, enterrors.NewErrNotStarted(component)
	}
	return l.version, nil
}

func (l *Link) Dialect() (*Dialect, error) {
	l.RLock()
	defer l.RUnlock()
	if l.dialect == nil {
		return nil, enterrors.NewErrNotStarted(component)
	}
	return l.dialect, nil
}

func (l *Link) Works() (*WorkFactory, error) {
	l.RLock()
	defer l.RUnlock()
	if l.works == nil {
		return nil, enterrors.NewErrNotStarted(component)
	}
	return l.works, nil
}

func (l *Link) Orchestrator() (*Orchestrator, error) {
	l.RLock()
	defer l.RUnlock()
	if l.orchestrator == nil {
		return nil, enterrors.NewErrNotStarted(component)
	}
	return l.orchestrator, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
