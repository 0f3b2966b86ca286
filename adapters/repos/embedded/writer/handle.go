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

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/usecases/monitoring"
)

// WriterHandle is the live engine writer of one index together with the
// merge scheduler plugged into it. Handles are owned by a WriterHolder.
type WriterHandle struct {
	engine.Writer

	sequence  uint64
	scheduler interface{ Close() }
	metrics   *monitoring.IndexMetrics

	closeOnce sync.Once
	closeErr  error
}

// Sequence numbers the handles created by a holder, starting at 1.
func (h *WriterHandle) Sequence() uint64 {
	return h.sequence
}

// Close stops merging, commits pending changes and releases the directory
// lock. Only the first call of Close or Rollback has an effect.
func (h *WriterHandle) Close() error {
	return h.shutdown(h.Writer.Close)
}

// Rollback stops merging and releases the directory lock without
// committing.
func (h *WriterHandle) Rollback() error {
	return h.shutdown(h.Writer.Rollback)
}

func (h *WriterHandle) shutdown(closeWriter func() error) error {
	h.closeOnce.Do(func() {
		// running merges finish first, merges offered by the final flush are
		// dropped by the closed scheduler
		h.scheduler.Close()
		h.closeErr = closeWriter()
		h.metrics.WriterClosed()
	})
	return h.closeErr
}
