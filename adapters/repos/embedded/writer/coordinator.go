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
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/entities/threads"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

const delayedCommitOperation = "Delayed commit"

// CommitCoordinator commits one writer handle, either right away or batched
// within the commit interval. Commits are serialized by commitLock; at most
// one commit happens per expired commit window.
type CommitCoordinator struct {
	indexName string
	holder    *WriterHolder
	handle    *WriterHandle
	interval  time.Duration
	cfg       Config
	logger    logrus.FieldLogger

	// epoch anchors expiration, which is stored as nanoseconds since epoch
	// so it can be read without the lock
	epoch      time.Time
	expiration atomic.Int64

	commitLock sync.Mutex
	closed     bool // guarded by commitLock

	delayed *delayedCommitTask // nil without a commit interval
}

func newCommitCoordinator(holder *WriterHolder, handle *WriterHandle) *CommitCoordinator {
	cfg := holder.cfg
	c := &CommitCoordinator{
		indexName: cfg.IndexName,
		holder:    holder,
		handle:    handle,
		interval:  cfg.CommitInterval,
		cfg:       cfg,
		logger: holder.logger.WithFields(logrus.Fields{
			"action":   "commit_coordinator",
			"sequence": handle.sequence,
		}),
		epoch: cfg.Clock.Now(),
	}
	c.resetExpiration()

	if c.interval > 0 {
		c.delayed = newDelayedCommitTask(threads.DelayedCommitThreadName(cfg.label()),
			cfg.Executor, c.runDelayed, c.reportDelayedFailure)
	}
	return c
}

func (c *CommitCoordinator) now() int64 {
	return int64(c.cfg.Clock.Now().Sub(c.epoch))
}

func (c *CommitCoordinator) resetExpiration() {
	c.expiration.Store(c.now() + int64(c.interval))
}

func (c *CommitCoordinator) timeToCommit() time.Duration {
	return time.Duration(c.expiration.Load() - c.now())
}

// CommitExpiration is the point in time after which pending changes are due.
func (c *CommitCoordinator) CommitExpiration() time.Time {
	return c.epoch.Add(time.Duration(c.expiration.Load()))
}

// Commit commits unconditionally. Errors are wrapped with the index name
// and leave the writer open; closing it is up to the caller.
func (c *CommitCoordinator) Commit() error {
	c.commitLock.Lock()
	defer c.commitLock.Unlock()

	return c.commitLocked(monitoring.CommitModeSync)
}

func (c *CommitCoordinator) commitLocked(mode string) error {
	if c.closed {
		return enterrors.ErrWriterClosed
	}

	start := c.cfg.Clock.Now()
	err := c.handle.Commit()
	c.cfg.Metrics.ObserveCommit(mode, c.cfg.Clock.Now().Sub(start), err)
	if err != nil {
		return enterrors.NewErrCommit(c.indexName, err)
	}

	c.resetExpiration()
	return nil
}

// CommitOrDelay commits if the commit window expired and otherwise makes
// sure a delayed commit is scheduled for the end of the window. Without
// uncommitted changes it does nothing.
func (c *CommitCoordinator) CommitOrDelay() error {
	return c.commitOrDelay(monitoring.CommitModeSync)
}

func (c *CommitCoordinator) commitOrDelay(mode string) error {
	if !c.handle.HasUncommittedChanges() {
		return nil
	}

	if c.interval == 0 {
		c.commitLock.Lock()
		defer c.commitLock.Unlock()
		return c.commitLocked(mode)
	}

	if timeToCommit := c.timeToCommit(); timeToCommit > 0 {
		c.scheduleDelayed(timeToCommit)
		return nil
	}

	c.commitLock.Lock()
	defer c.commitLock.Unlock()

	// another caller may have committed while we waited for the lock
	timeToCommit := c.timeToCommit()
	if timeToCommit <= 0 {
		return c.commitLocked(mode)
	}
	if !c.closed && c.handle.HasUncommittedChanges() {
		c.scheduleDelayed(timeToCommit)
	}
	return nil
}

func (c *CommitCoordinator) scheduleDelayed(delay time.Duration) {
	if c.delayed.ensureScheduled(delay) {
		c.cfg.Metrics.DelayedCommitScheduled()
	}
}

func (c *CommitCoordinator) runDelayed() error {
	err := c.commitOrDelay(monitoring.CommitModeDelayed)
	if errors.Is(err, enterrors.ErrWriterClosed) {
		return nil
	}
	return err
}

func (c *CommitCoordinator) reportDelayedFailure(err error) {
	c.cfg.FailureHandler.Handle(failure.Context{
		IndexName:        c.indexName,
		FailingOperation: delayedCommitOperation,
		Cause:            err,
	})
}

// Close stops the delayed commit first and then, under the commit lock,
// commits pending changes and closes the writer. It waits for a commit in
// flight. Closing twice is a no-op.
func (c *CommitCoordinator) Close() error {
	if c.delayed != nil {
		c.delayed.stop()
	}

	c.commitLock.Lock()
	defer c.commitLock.Unlock()

	if c.closed {
		return nil
	}

	var commitErr error
	if c.handle.HasUncommittedChanges() {
		commitErr = c.commitLocked(monitoring.CommitModeClose)
	}
	c.closed = true

	closeErr := c.holder.closeHandle(c.handle)
	if commitErr != nil {
		return enterrors.WithSuppressed(commitErr, closeErr)
	}
	return closeErr
}

// CloseAfterFailure discards the writer after cause made it unusable. Errors
// while closing are attached to cause, never replacing it. A separate failure
// event is reported because operations not committed before the failure are
// lost along with the writer.
func (c *CommitCoordinator) CloseAfterFailure(cause error, failingOperation string) {
	if c.delayed != nil {
		c.delayed.stop()
	}

	c.commitLock.Lock()
	if c.closed {
		c.commitLock.Unlock()
		return
	}
	c.closed = true
	closeErr := c.holder.releaseAfterFailure(c.handle)
	c.commitLock.Unlock()

	c.cfg.FailureHandler.Handle(failure.Context{
		IndexName:        c.indexName,
		FailingOperation: failingOperation,
		Cause: errors.Wrap(enterrors.WithSuppressed(cause, closeErr), "the index writer was discarded, "+
			"operations not committed before this failure may have been lost"),
	})
}

// forceLockRelease closes the coordinator and force releases its handle
// without reporting a failure event.
func (c *CommitCoordinator) forceLockRelease() error {
	if c.delayed != nil {
		c.delayed.stop()
	}

	c.commitLock.Lock()
	defer c.commitLock.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.holder.releaseAfterFailure(c.handle)
}
