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

package failure

import (
	"github.com/sirupsen/logrus"
)

// Context describes a single failure event. Events are reported for failures
// which cannot be returned to a foreground caller, such as background merges,
// delayed commits and operations lost when a writer is discarded.
type Context struct {
	IndexName        string
	FailingOperation string
	Cause            error
}

// Handler accepts failure events. Implementations must not block for long and
// must not panic; the reporting goroutine continues right after Handle returns.
type Handler interface {
	Handle(Context)
}

type HandlerFunc func(Context)

func (f HandlerFunc) Handle(ctx Context) {
	f(ctx)
}

type logHandler struct {
	logger logrus.FieldLogger
}

// NewLogHandler returns a Handler which logs every event at error level.
func NewLogHandler(logger logrus.FieldLogger) Handler {
	return &logHandler{logger: logger}
}

func (h *logHandler) Handle(ctx Context) {
	h.logger.WithFields(logrus.Fields{
		"action":    "failure_handler",
		"index":     ctx.IndexName,
		"operation": ctx.FailingOperation,
	}).WithError(ctx.Cause).Error("index operation failed")
}

// Multi fans each event out to all handlers in order.
func Multi(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx Context) {
		for _, h := range handlers {
			if h != nil {
				h.Handle(ctx)
			}
		}
	})
}
