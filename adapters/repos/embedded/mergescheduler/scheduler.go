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

// Package mergescheduler runs segment merges on named background goroutines
// and turns their failures into failure events.
package mergescheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/entities/threads"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

const mergeOperation = "Index merge"

type Scheduler struct {
	indexName string
	label     string
	threads   threads.Provider
	handler   failure.Handler
	logger    logrus.FieldLogger
	metrics   *monitoring.IndexMetrics

	// numbers merge goroutines of this scheduler, starting at 1
	threadCount atomic.Int64
	sem         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func New(indexName, label string, threadProvider threads.Provider, handler failure.Handler,
	logger logrus.FieldLogger, metrics *monitoring.IndexMetrics, maxConcurrent int,
) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		indexName: indexName,
		label:     label,
		threads:   threadProvider,
		handler:   handler,
		logger: logger.WithFields(logrus.Fields{
			"action": "merge_scheduler",
			"index":  indexName,
		}),
		metrics: metrics,
		sem:     make(chan struct{}, maxConcurrent),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Merge drains all merges the source currently offers and starts one
// goroutine per merge. At most maxConcurrent merges run at the same time,
// the others wait for a slot.
func (s *Scheduler) Merge(source engine.MergeSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.closed {
		m, ok := source.NextMerge()
		if !ok {
			return
		}

		name := threads.MergeThreadName(s.label, s.threadCount.Add(1))
		s.running.Add(1)
		s.threads.Go(name, func() {
			defer s.running.Done()
			s.run(name, m)
		})
	}
}

func (s *Scheduler) run(name string, m engine.Merge) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		// a merge must always be run, so the source can hand it out again
		_ = m.Run(s.ctx)
		return
	}
	defer func() { <-s.sem }()

	logger := s.logger.WithField("thread", name)
	logger.WithField("merge", m.String()).Debug("merge started")

	start := time.Now()
	s.metrics.MergeStarted()
	err := s.runRecovered(m)
	s.metrics.MergeFinished(time.Since(start), err != nil && !isAbort(err))

	if err != nil {
		s.OnMergeError(err)
		return
	}
	logger.WithField("took", time.Since(start)).Debug("merge finished")
}

func (s *Scheduler) runRecovered(m engine.Merge) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Recovered from panic in merge: %v", r)
			debug.PrintStack()
			err = enterrors.PanicAsError(r)
		}
	}()

	return m.Run(s.ctx)
}

// OnMergeError never lets an error escape. Cancellation is expected during
// shutdown and only logged, everything else is reported to the failure
// handler with the index identity attached.
func (s *Scheduler) OnMergeError(err error) {
	if err == nil {
		return
	}
	if isAbort(err) {
		s.logger.WithError(err).Debug("merge aborted")
		return
	}

	s.handler.Handle(failure.Context{
		IndexName:        s.indexName,
		FailingOperation: mergeOperation,
		Cause:            enterrors.NewErrMerge(s.indexName, err),
	})
}

// HandleBackgroundError receives failures of the engine's own background
// work. They are routed like merge failures.
func (s *Scheduler) HandleBackgroundError(err error) {
	s.OnMergeError(err)
}

// Close cancels merges which did not start yet and waits for running ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.running.Wait()
}

func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrMergeAborted)
}
