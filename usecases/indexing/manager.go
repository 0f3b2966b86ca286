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

package indexing

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/adapters/repos/embedded/writer"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/entities/scheduling"
	"github.com/weaviate/segmentwriter/entities/threads"
	"github.com/weaviate/segmentwriter/usecases/config"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

// DirectoryFactory opens the storage of one index at path.
type DirectoryFactory func(indexName, path string) (engine.Directory, error)

type ManagerConfig struct {
	Properties config.PropertySource

	// Directories defaults to pebble directories on the local filesystem.
	Directories DirectoryFactory
	// Registerer receives the metrics of all indexes. Nil disables metrics.
	Registerer prometheus.Registerer

	FailureHandler failure.Handler
	Threads        threads.Provider
	Executor       scheduling.Executor
	Clock          scheduling.Clock
}

// Manager owns the indexes of a process. Indexes are created on first use
// and share the background facilities of the manager.
type Manager struct {
	cfg     ManagerConfig
	metrics *monitoring.Metrics
	logger  logrus.FieldLogger

	sync.RWMutex
	indexes  map[string]*Index
	shutdown bool
}

func NewManager(cfg ManagerConfig, logger logrus.FieldLogger) *Manager {
	if cfg.Properties == nil {
		cfg.Properties = config.MapSource{}
	}
	if cfg.Threads == nil {
		cfg.Threads = threads.NewProvider(logger)
	}
	if cfg.Executor == nil {
		cfg.Executor = scheduling.NewExecutor(logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = scheduling.NewSystemClock()
	}
	if cfg.FailureHandler == nil {
		cfg.FailureHandler = failure.NewLogHandler(logger)
	}

	var metrics *monitoring.Metrics
	if cfg.Registerer != nil {
		metrics = monitoring.NewMetrics(cfg.Registerer)
	}
	if cfg.Directories == nil {
		cfg.Directories = pebbleDirectories(cfg.Registerer, logger)
	}

	return &Manager{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.WithField("action", "index_manager"),
		indexes: map[string]*Index{},
	}
}

func pebbleDirectories(reg prometheus.Registerer, logger logrus.FieldLogger) DirectoryFactory {
	return func(indexName, path string) (engine.Directory, error) {
		return engine.NewPebbleDirectory(engine.PebbleDirectoryConfig{
			Path:       path,
			IndexName:  indexName,
			Registerer: reg,
		}, logger), nil
	}
}

var ErrShutdown = errors.New("index manager is shut down")

// Index returns the index with the given name, creating it on first use.
func (m *Manager) Index(name string) (*Index, error) {
	m.RLock()
	idx, ok := m.indexes[name]
	shutdown := m.shutdown
	m.RUnlock()
	if ok {
		return idx, nil
	}
	if shutdown {
		return nil, ErrShutdown
	}

	m.Lock()
	defer m.Unlock()

	if m.shutdown {
		return nil, ErrShutdown
	}
	if idx, ok := m.indexes[name]; ok {
		return idx, nil
	}

	idx, err := m.newIndex(name)
	if err != nil {
		return nil, err
	}
	m.indexes[name] = idx
	return idx, nil
}

func (m *Manager) newIndex(name string) (*Index, error) {
	if name == "" {
		return nil, enterrors.NewErrConfigurationf("index name must not be empty")
	}

	indexCfg, err := config.BuildIndexConfig(m.cfg.Properties, name)
	if err != nil {
		return nil, err
	}
	dir, err := m.cfg.Directories(name, indexCfg.Directory)
	if err != nil {
		return nil, errors.Wrapf(err, "open directory of index %q", name)
	}

	m.logger.WithFields(logrus.Fields{
		"index":           name,
		"directory":       dir.Name(),
		"commit_interval": indexCfg.CommitInterval,
	}).Info("registered index")

	return NewIndex(writer.Config{
		IndexName:      name,
		Directory:      dir,
		Properties:     m.cfg.Properties,
		CommitInterval: indexCfg.CommitInterval,
		Threads:        m.cfg.Threads,
		Executor:       m.cfg.Executor,
		Clock:          m.cfg.Clock,
		FailureHandler: monitoring.FailureHandler(m.metrics, m.cfg.FailureHandler),
		Metrics:        m.metrics.ForIndex(name),
	}, m.logger), nil
}

// Indexes returns the names of all created indexes, sorted.
func (m *Manager) Indexes() []string {
	m.RLock()
	defer m.RUnlock()

	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown closes all indexes in parallel. Indexes cannot be created
// afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Lock()
	m.shutdown = true
	indexes := make([]*Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		indexes = append(indexes, idx)
	}
	m.Unlock()

	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	eg := enterrors.NewErrorGroupWrapper(m.logger)
	for _, idx := range indexes {
		idx := idx
		eg.Go(func() error {
			if err := idx.Close(); err != nil {
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "close index %q", idx.Name()))
				mu.Unlock()
			}
			return nil
		}, idx.Name())
	}

	done := make(chan error)
	abandoned := make(chan struct{})
	enterrors.GoWrapper(func() {
		err := eg.Wait()
		if err == nil {
			mu.Lock()
			err = result.ErrorOrNil()
			mu.Unlock()
		}

		select {
		case done <- err:
		case <-abandoned:
			// Shutdown returned already, nobody else sees the outcome
			logger := m.logger.WithField("indexes", len(indexes))
			if err != nil {
				logger.WithError(err).Error("closing indexes failed after the shutdown deadline")
				return
			}
			logger.Info("indexes closed after the shutdown deadline")
		}
	}, m.logger)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		close(abandoned)
		m.logger.WithField("indexes", len(indexes)).
			Warn("shutdown deadline reached while indexes are still closing")
		return errors.Wrap(ctx.Err(), "shutdown indexes")
	}
}
