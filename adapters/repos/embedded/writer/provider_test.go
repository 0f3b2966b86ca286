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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/mergescheduler"
	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

func TestWriterProvider_ConcurrentGetOrCreate(t *testing.T) {
	env := newTestEnv()
	env.dir.openDelay = 20 * time.Millisecond
	provider := env.provider(time.Second)

	assert.Nil(t, provider.GetOrNull())

	const callers = 8
	actives := make([]*ActiveWriter, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			active, err := provider.GetOrCreate()
			assert.NoError(t, err)
			actives[i] = active
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, env.dir.opens())
	for _, active := range actives {
		assert.Same(t, actives[0], active)
	}
	assert.Same(t, actives[0], provider.GetOrNull())
	assert.Same(t, actives[0].Handle, provider.holder.Current())
}

func TestWriterProvider_OpenError(t *testing.T) {
	env := newTestEnv()
	env.dir.openErr = errors.New("permission denied")
	provider := env.provider(time.Second)

	_, err := provider.GetOrCreate()
	require.Error(t, err)

	var openErr enterrors.ErrWriterOpen
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "products", openErr.Index())
	assert.Nil(t, provider.GetOrNull())
}

func TestWriterProvider_Clear(t *testing.T) {
	env := newTestEnv()
	provider := env.provider(time.Second)

	require.NoError(t, provider.Clear(), "nothing to clear")

	active, err := provider.GetOrCreate()
	require.NoError(t, err)
	require.NoError(t, addDoc(active, "1"))
	require.NoError(t, active.Committer.CommitOrDelay())

	require.NoError(t, provider.Clear())

	w := env.dir.writer(0)
	assert.Equal(t, int32(1), w.commits.Load(), "pending changes are committed")
	assert.True(t, w.closed.Load())
	assert.False(t, w.rolledBack.Load())
	assert.Nil(t, provider.GetOrNull())
	assert.Nil(t, provider.holder.Current())
	assert.Empty(t, env.executor.pending())
}

func TestWriterProvider_ClearAfterFailure(t *testing.T) {
	env := newTestEnv()
	provider := env.provider(time.Second)

	active, err := provider.GetOrCreate()
	require.NoError(t, err)
	require.NoError(t, addDoc(active, "1"))

	cause := errors.New("bulk apply failed")
	provider.ClearAfterFailure(active, cause, "Index update")
	provider.ClearAfterFailure(active, cause, "Index update")

	events := env.handler.recorded()
	require.Len(t, events, 1, "only the first clear reports")
	assert.Equal(t, "products", events[0].IndexName)
	assert.ErrorIs(t, events[0].Cause, cause)
	assert.Equal(t, 1, env.entries("index writer to clear after failure is not active"))

	w := env.dir.writer(0)
	assert.True(t, w.rolledBack.Load())
	assert.Zero(t, w.commits.Load())
	assert.Nil(t, provider.GetOrNull())

	t.Run("a new writer is created afterwards", func(t *testing.T) {
		rebuilt, err := provider.GetOrCreate()
		require.NoError(t, err)

		assert.NotSame(t, active, rebuilt)
		assert.Equal(t, uint64(2), rebuilt.Handle.Sequence())
		require.NoError(t, addDoc(rebuilt, "2"))
		require.NoError(t, rebuilt.Committer.Commit())
		assert.Equal(t, int32(1), env.dir.writer(1).commits.Load())
	})

	t.Run("the old coordinator is closed", func(t *testing.T) {
		assert.ErrorIs(t, active.Committer.Commit(), enterrors.ErrWriterClosed)
	})
}

func TestWriterProvider_RebuildWaitsForRelease(t *testing.T) {
	env := newTestEnv()
	env.dir.rollbackDelay = 50 * time.Millisecond
	provider := env.provider(time.Second)

	active, err := provider.GetOrCreate()
	require.NoError(t, err)

	cleared := make(chan struct{})
	go func() {
		defer close(cleared)
		provider.ClearAfterFailure(active, errors.New("disk error"), "Index update")
	}()

	// give the clear a head start so it holds the modification lock
	time.Sleep(10 * time.Millisecond)
	_, err = provider.GetOrCreate()
	require.NoError(t, err)
	<-cleared

	assert.Equal(t, []string{"open #1", "rollback #1", "unlock", "open #2"}, env.dir.events.all())
}

func TestWriterProvider_MergeFailureReachesHandler(t *testing.T) {
	env := newTestEnv()
	provider := env.provider(time.Second)

	active, err := provider.GetOrCreate()
	require.NoError(t, err)

	cause := errors.New("checksum mismatch in segment _3")
	scheduler, ok := env.dir.scheduler(0).(*mergescheduler.Scheduler)
	require.True(t, ok)
	scheduler.Merge(&singleMerge{m: fakeMerge{err: cause}})

	assert.Eventually(t, func() bool {
		return len(env.handler.recorded()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	event := env.handler.recorded()[0]
	assert.Equal(t, "products", event.IndexName)
	assert.Equal(t, "Index merge", event.FailingOperation)
	assert.ErrorIs(t, event.Cause, cause)

	var mergeErr enterrors.ErrMerge
	require.ErrorAs(t, event.Cause, &mergeErr)
	assert.Equal(t, "products", mergeErr.Index())

	require.NoError(t, addDoc(active, "1"))
	require.NoError(t, active.Committer.CommitOrDelay(), "the writer stays usable")
}

func TestWriterProvider_StaleWriterFailureKeepsNewWriter(t *testing.T) {
	env := newTestEnv()
	provider := env.provider(time.Second)

	stale, err := provider.GetOrCreate()
	require.NoError(t, err)
	require.NoError(t, provider.Clear())

	fresh, err := provider.GetOrCreate()
	require.NoError(t, err)
	require.NoError(t, addDoc(fresh, "1"))

	err = stale.Committer.Commit()
	require.ErrorIs(t, err, enterrors.ErrWriterClosed)
	provider.ClearAfterFailure(stale, err, "Index commit")
	provider.ClearAfterFailure(stale, errors.New("disk error"), "Index update")

	assert.Same(t, fresh, provider.GetOrNull())
	assert.False(t, env.dir.writer(1).rolledBack.Load())
	assert.True(t, fresh.Handle.HasUncommittedChanges())
	assert.Empty(t, env.handler.recorded())
	assert.Equal(t, 2, env.entries("index writer to clear after failure is not active"))

	require.NoError(t, fresh.Committer.Commit())
	assert.Equal(t, int32(1), env.dir.writer(1).commits.Load())
}

func TestWriterProvider_ForceLockRelease(t *testing.T) {
	t.Run("without a writer only the lock is removed", func(t *testing.T) {
		env := newTestEnv()
		provider := env.provider(time.Second)

		require.NoError(t, provider.ForceLockRelease())
		assert.Equal(t, []string{"unlock"}, env.dir.events.all())
	})

	t.Run("the active writer is discarded with its coordinator", func(t *testing.T) {
		env := newTestEnv()
		provider := env.provider(time.Second)

		active, err := provider.GetOrCreate()
		require.NoError(t, err)
		require.NoError(t, addDoc(active, "1"))
		require.NoError(t, active.Committer.CommitOrDelay())
		require.Len(t, env.executor.pending(), 1)

		require.NoError(t, provider.ForceLockRelease())

		assert.Nil(t, provider.GetOrNull())
		assert.Nil(t, provider.holder.Current())
		assert.Empty(t, env.executor.pending())
		assert.True(t, env.dir.writer(0).rolledBack.Load())
		assert.Zero(t, env.dir.writer(0).commits.Load())
		assert.ErrorIs(t, active.Committer.Commit(), enterrors.ErrWriterClosed)
		assert.Empty(t, env.handler.recorded())

		rebuilt, err := provider.GetOrCreate()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), rebuilt.Handle.Sequence())
		assert.Equal(t, []string{"open #1", "rollback #1", "unlock", "open #2"}, env.dir.events.all())
	})
}
