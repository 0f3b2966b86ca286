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
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// NextMerge implements a log-structured merge policy on top of the level 0
// segments: once MergeFactor segments are waiting, they are merged down,
// unless their size exceeds MergeMaxSizeMB. At most one merge is handed out
// at a time.
//
// NextMerge is called from flush callbacks while a commit may hold the
// lifecycle lock, so it never waits for that lock.
func (w *pebbleWriter) NextMerge() (Merge, bool) {
	if !w.lifecycle.TryRLock() {
		return nil, false
	}
	defer w.lifecycle.RUnlock()

	if w.closed {
		return nil, false
	}

	l0 := w.db.Metrics().Levels[0]
	if l0.NumFiles < int64(w.cfg.MergeFactor) {
		return nil, false
	}

	size := w.calibratedSize(l0.Size)
	if max := int64(w.cfg.MergeMaxSizeMB) << 20; size > max {
		return nil, false
	}

	if !w.mergePending.CompareAndSwap(false, true) {
		return nil, false
	}

	return &pebbleMerge{w: w, segments: l0.NumFiles, size: size}, true
}

// calibratedSize discounts deleted documents from the segment size. Sizes
// below MergeMinSizeMB are rounded up to it.
func (w *pebbleWriter) calibratedSize(size int64) int64 {
	if w.cfg.MergeCalibrateByDeletes {
		additions, deletions := w.additions.Load(), w.deletions.Load()
		if total := additions + deletions; total > 0 && deletions > 0 {
			size = size * additions / total
		}
	}
	if min := int64(w.cfg.MergeMinSizeMB) << 20; size < min {
		size = min
	}
	return size
}

func (w *pebbleWriter) resetMergeStats() {
	w.additions.Store(0)
	w.deletions.Store(0)
}

type pebbleMerge struct {
	w        *pebbleWriter
	segments int64
	size     int64
}

func (m *pebbleMerge) Run(ctx context.Context) error {
	defer m.w.mergePending.Store(false)

	if err := ctx.Err(); err != nil {
		return err
	}

	release, err := m.w.acquire()
	if err != nil {
		return ErrMergeAborted
	}
	defer release()

	if err := m.w.db.Compact(compactStart, compactEnd, false); err != nil {
		if errors.Is(err, pebble.ErrClosed) {
			return ErrMergeAborted
		}
		return errors.Wrap(err, m.String())
	}
	m.w.resetMergeStats()
	return nil
}

func (m *pebbleMerge) String() string {
	return fmt.Sprintf("merge of %d segments (%d bytes)", m.segments, m.size)
}
