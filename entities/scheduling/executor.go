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

package scheduling

import (
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

// Clock abstracts the monotonic time source so that time-budgeted policies
// can be tested with simulated time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Task is a handle on a single scheduled run.
type Task interface {
	// Cancel prevents the task from running. It returns false if the task
	// already started or finished, in which case it is not interrupted.
	Cancel() bool
}

// Executor is the scheduled-task facility shared by all writers of a
// process. Scheduled functions run on their own goroutine, labelled with
// the given name.
type Executor interface {
	Schedule(name string, delay time.Duration, f func()) Task
}

type timerExecutor struct {
	logger logrus.FieldLogger
}

func NewExecutor(logger logrus.FieldLogger) Executor {
	return &timerExecutor{logger: logger.WithField("action", "scheduled_task")}
}

func (e *timerExecutor) Schedule(name string, delay time.Duration, f func()) Task {
	if delay < 0 {
		delay = 0
	}

	return &timerTask{timer: time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.WithField("thread", name).Errorf("Recovered from panic: %v", r)
				debug.PrintStack()
			}
		}()
		enterrors.RunNamed(name, f)
	})}
}

type timerTask struct {
	timer *time.Timer
}

func (t *timerTask) Cancel() bool {
	return t.timer.Stop()
}
