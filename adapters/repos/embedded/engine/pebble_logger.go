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

package engine

import (
	"github.com/cockroachdb/pebble"
	"github.com/sirupsen/logrus"
)

type pebbleLogger struct {
	logger     logrus.FieldLogger
	infoStream bool
}

func newPebbleLogger(logger logrus.FieldLogger, infoStream bool) *pebbleLogger {
	return &pebbleLogger{
		logger:     logger.WithField("component", "pebble"),
		infoStream: infoStream,
	}
}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	if l.infoStream {
		l.logger.Debugf(format, args...)
	}
}

func (l *pebbleLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// eventListener routes engine background failures to the merge scheduler
// and asks it for merges after every flush.
func (w *pebbleWriter) eventListener() *pebble.EventListener {
	listener := &pebble.EventListener{
		BackgroundError: func(err error) {
			if w.scheduler != nil {
				w.scheduler.HandleBackgroundError(err)
			}
		},
		FlushEnd: func(info pebble.FlushInfo) {
			if w.cfg.InfoStream {
				w.logger.WithField("event", "flush").Debug(info.String())
			}
			if info.Err == nil && w.scheduler != nil {
				w.scheduler.Merge(w)
			}
		},
	}

	if w.cfg.InfoStream {
		listener.CompactionEnd = func(info pebble.CompactionInfo) {
			w.logger.WithField("event", "compaction").Debug(info.String())
		}
		listener.WriteStallBegin = func(info pebble.WriteStallBeginInfo) {
			w.logger.WithField("event", "write_stall").Debug(info.String())
		}
	}

	return listener
}
