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

// Package engine is the port to the underlying segment-based indexing engine.
// The writer layer only relies on the interfaces in this file; the pebble
// backed implementation lives next to them.
package engine

import (
	"context"
	"errors"

	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/usecases/config"
)

var (
	// ErrMergeAborted is returned by Merge.Run if the merge was abandoned
	// because the writer is shutting down. It is not a failure.
	ErrMergeAborted = errors.New("merge aborted")

	// ErrClosed is returned for operations on a writer or reader which has
	// already been closed.
	ErrClosed = errors.New("engine: closed")
)

// Writer is a live, lock-holding writer on one index directory. Mutations
// are safe for concurrent use; ordering between concurrent callers is not
// defined.
type Writer interface {
	AddDocuments(docs ...document.Document) error
	UpdateDocuments(docs ...document.Document) error
	DeleteDocuments(ids ...string) error
	DeleteAll() error

	HasUncommittedChanges() bool
	Commit() error

	// ForceMerge blocks until the index has been merged into at most
	// maxNumSegments segments, as far as the merge policy allows.
	ForceMerge(maxNumSegments int) error

	// OpenReader returns a point-in-time view including uncommitted changes.
	OpenReader(applyDeletes bool) (Reader, error)

	// Close commits pending changes, waits for running merges and releases
	// the directory lock.
	Close() error

	// Rollback restores the state of the last commit, including documents
	// which were flushed already, and releases the directory lock.
	Rollback() error
}

type Reader interface {
	Get(id string) (document.Document, bool, error)
	Count() (int, error)
	Close() error
}

type Merge interface {
	Run(ctx context.Context) error
	String() string
}

// MergeSource hands out merges selected by the merge policy. NextMerge must
// not block.
type MergeSource interface {
	NextMerge() (Merge, bool)
}

// MergeScheduler runs merges in the background. The engine calls Merge
// whenever new merges may have become eligible and HandleBackgroundError for
// failures of its own background work.
type MergeScheduler interface {
	Merge(source MergeSource)
	HandleBackgroundError(err error)
}

// Directory is the storage location of a single index.
type Directory interface {
	Name() string
	OpenWriter(cfg config.WriterConfig, scheduler MergeScheduler) (Writer, error)
	// ForceUnlock removes a stale directory lock. It must only be called
	// when no writer of this process holds the lock anymore.
	ForceUnlock() error
}
