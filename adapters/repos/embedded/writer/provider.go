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

package writer

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

// ActiveWriter is the live handle of an index with its commit coordinator.
// Both are created and discarded together.
type ActiveWriter struct {
	Handle    *WriterHandle
	Committer *CommitCoordinator
}

// WriterProvider hands out the ActiveWriter of one index, creating it on
// first use, and is the single place where a broken writer is discarded.
type WriterProvider struct {
	indexName string
	holder    *WriterHolder
	logger    logrus.FieldLogger

	current atomic.Pointer[ActiveWriter]
	// modificationLock is held across creation and teardown, so a new writer
	// is never opened before the old one released its directory lock
	modificationLock sync.Mutex
}

func NewWriterProvider(cfg Config, logger logrus.FieldLogger) *WriterProvider {
	holder := NewWriterHolder(cfg, logger)
	return &WriterProvider{
		indexName: cfg.IndexName,
		holder:    holder,
		logger:    holder.logger,
	}
}

// GetOrNull never creates anything.
func (p *WriterProvider) GetOrNull() *ActiveWriter {
	return p.current.Load()
}

func (p *WriterProvider) GetOrCreate() (*ActiveWriter, error) {
	if active := p.current.Load(); active != nil {
		return active, nil
	}

	p.modificationLock.Lock()
	defer p.modificationLock.Unlock()

	if active := p.current.Load(); active != nil {
		return active, nil
	}

	handle, err := p.holder.GetOrCreate()
	if err != nil {
		return nil, enterrors.NewErrWriterOpen(p.indexName, err)
	}

	active := &ActiveWriter{
		Handle:    handle,
		Committer: newCommitCoordinator(p.holder, handle),
	}
	p.current.Store(active)
	return active, nil
}

// Clear closes the active writer gracefully, committing pending changes.
func (p *WriterProvider) Clear() error {
	p.modificationLock.Lock()
	defer p.modificationLock.Unlock()

	active := p.current.Swap(nil)
	if active == nil {
		return nil
	}
	return active.Committer.Close()
}

// ClearAfterFailure discards failed without committing. A writer which is no
// longer the active one was discarded already, so clearing it again or
// clearing a stale writer does nothing and never touches a newer writer.
func (p *WriterProvider) ClearAfterFailure(failed *ActiveWriter, cause error, failingOperation string) {
	p.modificationLock.Lock()
	defer p.modificationLock.Unlock()

	if failed == nil || !p.current.CompareAndSwap(failed, nil) {
		p.logger.WithError(cause).
			WithField("operation", failingOperation).
			Debug("index writer to clear after failure is not active")
		return
	}
	failed.Committer.CloseAfterFailure(cause, failingOperation)
}

// ForceLockRelease discards the active writer without committing and
// removes the directory lock, even if no writer is active.
func (p *WriterProvider) ForceLockRelease() error {
	p.modificationLock.Lock()
	defer p.modificationLock.Unlock()

	active := p.current.Swap(nil)
	if active == nil {
		return p.holder.ForceLockRelease()
	}
	return active.Committer.forceLockRelease()
}

// OpenNearRealTimeReader returns false if no writer is open.
func (p *WriterProvider) OpenNearRealTimeReader(applyDeletes bool) (engine.Reader, bool, error) {
	return p.holder.OpenNearRealTimeReader(applyDeletes)
}
