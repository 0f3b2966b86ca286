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

// Package indexing is the entry point of the indexing pipeline. It sends
// batches to the index writer, drives the commit policy and recovers from
// writer failures by discarding the broken writer.
package indexing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/adapters/repos/embedded/writer"
	"github.com/weaviate/segmentwriter/entities/document"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

const (
	operationUpdate     = "Index update"
	operationCommit     = "Index commit"
	operationForceMerge = "Index force merge"
)

type Index struct {
	name     string
	provider *writer.WriterProvider
	logger   logrus.FieldLogger
}

func NewIndex(cfg writer.Config, logger logrus.FieldLogger) *Index {
	return &Index{
		name:     cfg.IndexName,
		provider: writer.NewWriterProvider(cfg, logger),
		logger:   logger.WithField("index", cfg.IndexName),
	}
}

func (i *Index) Name() string {
	return i.name
}

// Mutate applies the batch to the writer, creating the writer if needed.
// Any writer failure discards the writer before the error is returned, the
// next call starts with a fresh one.
func (i *Index) Mutate(ctx context.Context, batch document.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return errors.Wrapf(err, "index %q", i.name)
	}

	active, err := i.provider.GetOrCreate()
	if err != nil {
		return err
	}

	if err := engine.Apply(active.Handle, batch); err != nil {
		i.discard(active, err, operationUpdate)
		return errors.Wrapf(err, "index %q", i.name)
	}
	return nil
}

// CommitOrDelay commits pending changes once the commit interval elapsed
// and schedules a delayed commit otherwise. Without a writer there is
// nothing to commit.
func (i *Index) CommitOrDelay(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	active := i.provider.GetOrNull()
	if active == nil {
		return nil
	}
	if err := active.Committer.CommitOrDelay(); err != nil {
		i.discard(active, err, operationCommit)
		return err
	}
	return nil
}

func (i *Index) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	active := i.provider.GetOrNull()
	if active == nil {
		return nil
	}
	if err := active.Committer.Commit(); err != nil {
		i.discard(active, err, operationCommit)
		return err
	}
	return nil
}

// ForceMergeToSingleSegment merges the whole index and commits the result.
func (i *Index) ForceMergeToSingleSegment(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	active, err := i.provider.GetOrCreate()
	if err != nil {
		return err
	}

	if err := active.Handle.ForceMerge(1); err != nil {
		err = errors.Wrapf(err, "force merge index %q", i.name)
		i.discard(active, err, operationForceMerge)
		return err
	}
	if err := active.Committer.Commit(); err != nil {
		i.discard(active, err, operationForceMerge)
		return err
	}

	i.logger.WithField("action", "force_merge").Debug("merged index to a single segment")
	return nil
}

// OpenNearRealTimeReader returns false if no writer is open, readers then
// have to read the committed state.
func (i *Index) OpenNearRealTimeReader(applyDeletes bool) (engine.Reader, bool, error) {
	return i.provider.OpenNearRealTimeReader(applyDeletes)
}

// ForceLockRelease discards the writer without committing and removes the
// directory lock left behind by a broken writer.
func (i *Index) ForceLockRelease() error {
	return i.provider.ForceLockRelease()
}

// Close commits pending changes and releases the writer.
func (i *Index) Close() error {
	return i.provider.Clear()
}

// discard drops active after err broke it. A writer closed concurrently
// reports closed errors, those are no failure of the current writer.
func (i *Index) discard(active *writer.ActiveWriter, err error, failingOperation string) {
	if errors.Is(err, enterrors.ErrWriterClosed) || errors.Is(err, engine.ErrClosed) {
		i.logger.WithError(err).
			WithField("operation", failingOperation).
			Debug("index writer was closed concurrently")
		return
	}
	i.provider.ClearAfterFailure(active, err, failingOperation)
}
