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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/entities/threads"
	"github.com/weaviate/segmentwriter/usecases/config"
)

type testEnv struct {
	dir      *fakeDirectory
	clock    *manualClock
	executor *manualExecutor
	handler  *recordingHandler
	hook     *test.Hook
	logger   *logrus.Logger
}

func newTestEnv() *testEnv {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	clock := newManualClock()

	return &testEnv{
		dir:      newFakeDirectory(),
		clock:    clock,
		executor: newManualExecutor(clock),
		handler:  &recordingHandler{},
		hook:     hook,
		logger:   logger,
	}
}

func (e *testEnv) config(interval time.Duration) Config {
	return Config{
		IndexName:      "products",
		Directory:      e.dir,
		Properties:     config.MapSource{config.KeyMergeFactor: "4"},
		CommitInterval: interval,
		Threads:        threads.NewProvider(e.logger),
		Executor:       e.executor,
		Clock:          e.clock,
		FailureHandler: e.handler,
	}
}

func (e *testEnv) provider(interval time.Duration) *WriterProvider {
	return NewWriterProvider(e.config(interval), e.logger)
}

func (e *testEnv) holder() *WriterHolder {
	return NewWriterHolder(e.config(0), e.logger)
}

func (e *testEnv) entries(msg string) int {
	count := 0
	for _, entry := range e.hook.AllEntries() {
		if entry.Message == msg {
			count++
		}
	}
	return count
}

func addDoc(active *ActiveWriter, id string) error {
	return active.Handle.AddDocuments(document.Document{ID: id})
}
