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

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/entities/scheduling"
	"github.com/weaviate/segmentwriter/entities/threads"
	"github.com/weaviate/segmentwriter/usecases/config"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

type Config struct {
	IndexName string
	Directory engine.Directory
	// Properties are read on every writer creation.
	Properties config.PropertySource
	// CommitInterval of zero commits synchronously on every CommitOrDelay.
	CommitInterval time.Duration

	Threads        threads.Provider
	Executor       scheduling.Executor
	Clock          scheduling.Clock
	FailureHandler failure.Handler
	Metrics        *monitoring.IndexMetrics
}

func (c *Config) setDefaults(logger logrus.FieldLogger) {
	if c.Properties == nil {
		c.Properties = config.MapSource{}
	}
	if c.Threads == nil {
		c.Threads = threads.NewProvider(logger)
	}
	if c.Executor == nil {
		c.Executor = scheduling.NewExecutor(logger)
	}
	if c.Clock == nil {
		c.Clock = scheduling.NewSystemClock()
	}
	if c.FailureHandler == nil {
		c.FailureHandler = failure.NewLogHandler(logger)
	}
}

func (c *Config) label() string {
	return threads.IndexContext(c.IndexName)
}
