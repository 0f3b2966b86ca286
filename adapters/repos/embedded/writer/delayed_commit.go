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
	"time"

	"github.com/weaviate/segmentwriter/entities/scheduling"
)

// delayedCommitTask is a singleton task: at most one run is scheduled at any
// time, ensureScheduled is a no-op while one is pending.
type delayedCommitTask struct {
	name     string
	executor scheduling.Executor
	run      func() error
	onError  func(error)

	mu        sync.Mutex
	scheduled scheduling.Task
	stopped   bool
	inFlight  sync.WaitGroup
}

func newDelayedCommitTask(name string, executor scheduling.Executor,
	run func() error, onError func(error),
) *delayedCommitTask {
	return &delayedCommitTask{
		name:     name,
		executor: executor,
		run:      run,
		onError:  onError,
	}
}

// ensureScheduled reports whether a new run was scheduled.
func (t *delayedCommitTask) ensureScheduled(delay time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.scheduled != nil {
		return false
	}

	t.inFlight.Add(1)
	t.scheduled = t.executor.Schedule(t.name, delay, t.fire)
	return true
}

func (t *delayedCommitTask) fire() {
	t.mu.Lock()
	t.scheduled = nil
	stopped := t.stopped
	t.mu.Unlock()

	var err error
	if !stopped {
		err = t.run()
	}
	// done before reporting, so a failure handler may stop the task
	t.inFlight.Done()

	if err != nil {
		t.onError(err)
	}
}

func (t *delayedCommitTask) isScheduled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheduled != nil
}

// stop cancels a pending run and waits for a run in flight. The task can not
// be scheduled again afterwards.
func (t *delayedCommitTask) stop() {
	t.mu.Lock()
	t.stopped = true
	if t.scheduled != nil && t.scheduled.Cancel() {
		t.inFlight.Done()
	}
	t.scheduled = nil
	t.mu.Unlock()

	t.inFlight.Wait()
}
