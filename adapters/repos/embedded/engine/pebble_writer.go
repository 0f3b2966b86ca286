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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/usecases/config"
)

var (
	docPrefix     = []byte("d/")
	docPrefixEnd  = []byte("d0") // '/' + 1
	commitInfoKey = []byte("m/commit")

	compactStart = []byte{0x00}
	compactEnd   = []byte{0xff}
)

type commitInfo struct {
	Generation uint64 `msgpack:"generation"`
	Timestamp  int64  `msgpack:"timestamp"`
}

type pebbleWriter struct {
	cfg        config.WriterConfig
	scheduler  MergeScheduler
	logger     logrus.FieldLogger
	unregister func()

	// lifecycle guards db: pebble panics on use after close. Operations hold
	// the read lock, Close and Rollback the write lock.
	lifecycle sync.RWMutex
	closed    bool
	db        *pebble.DB

	commitLock sync.Mutex
	generation atomic.Uint64

	// mutations is held shared by writes and exclusively by a commit, so
	// the undo log moves to the new commit point with nothing in between
	mutations sync.RWMutex
	undo      undoLog

	// changes counts mutations, committed is the value of changes at the
	// start of the last successful commit.
	changes   atomic.Uint64
	committed atomic.Uint64

	bufferedDocs atomic.Int64
	additions    atomic.Int64
	deletions    atomic.Int64
	mergePending atomic.Bool

	readersLock sync.Mutex
	readers     map[*pebbleReader]struct{}
}

func (w *pebbleWriter) loadCommitInfo() error {
	val, closer, err := w.db.Get(commitInfoKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	var info commitInfo
	if err := msgpack.Unmarshal(val, &info); err != nil {
		return errors.Wrap(err, "decode commit info")
	}
	w.generation.Store(info.Generation)
	return nil
}

func docKey(id string) []byte {
	key := make([]byte, 0, len(docPrefix)+len(id))
	key = append(key, docPrefix...)
	return append(key, id...)
}

func (w *pebbleWriter) acquire() (func(), error) {
	w.lifecycle.RLock()
	if w.closed {
		w.lifecycle.RUnlock()
		return nil, ErrClosed
	}
	return w.lifecycle.RUnlock, nil
}

func (w *pebbleWriter) AddDocuments(docs ...document.Document) error {
	return w.putDocuments(docs)
}

// UpdateDocuments replaces documents by id. A document which does not exist
// yet is added.
func (w *pebbleWriter) UpdateDocuments(docs ...document.Document) error {
	return w.putDocuments(docs)
}

func (w *pebbleWriter) putDocuments(docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	release, err := w.acquire()
	if err != nil {
		return err
	}
	defer release()

	b := w.db.NewBatch()
	defer b.Close()

	keys := make([][]byte, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return errors.New("document id must not be empty")
		}
		val, err := msgpack.Marshal(doc)
		if err != nil {
			return errors.Wrapf(err, "encode document %q", doc.ID)
		}
		keys[i] = docKey(doc.ID)
		if err := b.Set(keys[i], val, nil); err != nil {
			return err
		}
	}

	w.mutations.RLock()
	defer w.mutations.RUnlock()

	w.undo.touch(keys...)
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "write documents")
	}

	w.additions.Add(int64(len(docs)))
	w.changed(len(docs))
	return nil
}

func (w *pebbleWriter) DeleteDocuments(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	release, err := w.acquire()
	if err != nil {
		return err
	}
	defer release()

	b := w.db.NewBatch()
	defer b.Close()

	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = docKey(id)
		if err := b.Delete(keys[i], nil); err != nil {
			return err
		}
	}

	w.mutations.RLock()
	defer w.mutations.RUnlock()

	w.undo.touch(keys...)
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "delete documents")
	}

	w.deletions.Add(int64(len(ids)))
	w.changed(len(ids))
	return nil
}

func (w *pebbleWriter) DeleteAll() error {
	release, err := w.acquire()
	if err != nil {
		return err
	}
	defer release()

	w.mutations.RLock()
	defer w.mutations.RUnlock()

	w.undo.touchAll()
	if err := w.db.DeleteRange(docPrefix, docPrefixEnd, pebble.NoSync); err != nil {
		return errors.Wrap(err, "delete all documents")
	}
	w.changed(1)
	return nil
}

func (w *pebbleWriter) changed(docs int) {
	w.changes.Add(1)

	if w.cfg.MaxBufferedDocs <= 0 {
		return
	}
	if w.bufferedDocs.Add(int64(docs)) < int64(w.cfg.MaxBufferedDocs) {
		return
	}
	w.bufferedDocs.Store(0)
	if _, err := w.db.AsyncFlush(); err != nil {
		w.logger.WithError(err).Warn("flush of buffered documents failed")
	}
}

func (w *pebbleWriter) HasUncommittedChanges() bool {
	return w.changes.Load() != w.committed.Load()
}

func (w *pebbleWriter) Commit() error {
	release, err := w.acquire()
	if err != nil {
		return err
	}
	defer release()

	return w.commit()
}

// commit requires the lifecycle lock to be held, in either mode.
func (w *pebbleWriter) commit() error {
	w.commitLock.Lock()
	defer w.commitLock.Unlock()
	w.mutations.Lock()
	defer w.mutations.Unlock()

	seen := w.changes.Load()
	info := commitInfo{
		Generation: w.generation.Load() + 1,
		Timestamp:  time.Now().UnixNano(),
	}
	val, err := msgpack.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "encode commit info")
	}
	if err := w.db.Set(commitInfoKey, val, pebble.NoSync); err != nil {
		return errors.Wrap(err, "write commit info")
	}
	if err := w.db.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}

	w.generation.Store(info.Generation)
	w.committed.Store(seen)
	w.bufferedDocs.Store(0)
	w.undo.reset(w.db)

	if w.cfg.InfoStream {
		w.logger.WithField("generation", info.Generation).Debug("committed")
	}
	return nil
}

func (w *pebbleWriter) Generation() uint64 {
	return w.generation.Load()
}

func (w *pebbleWriter) ForceMerge(maxNumSegments int) error {
	if maxNumSegments < 1 {
		return errors.Errorf("invalid number of segments %d", maxNumSegments)
	}

	release, err := w.acquire()
	if err != nil {
		return err
	}
	defer release()

	if limit := int64(w.cfg.MergeMaxOptimizeSizeMB) << 20; limit > 0 {
		if size := w.indexSize(); size > limit {
			w.logger.WithFields(logrus.Fields{
				"size":  size,
				"limit": limit,
			}).Debug("index exceeds max optimize size, skipping forced merge")
			return nil
		}
	}

	if err := w.db.Compact(compactStart, compactEnd, maxNumSegments > 1); err != nil {
		return errors.Wrap(err, "force merge")
	}
	w.resetMergeStats()
	return nil
}

func (w *pebbleWriter) indexSize() int64 {
	var size int64
	for _, level := range w.db.Metrics().Levels {
		size += level.Size
	}
	return size
}

func (w *pebbleWriter) OpenReader(applyDeletes bool) (Reader, error) {
	release, err := w.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	// deletes are always visible in a snapshot, applyDeletes=false is
	// served with the same view
	r := &pebbleReader{snap: w.db.NewSnapshot(), owner: w}

	w.readersLock.Lock()
	w.readers[r] = struct{}{}
	w.readersLock.Unlock()
	return r, nil
}

func (w *pebbleWriter) forgetReader(r *pebbleReader) {
	w.readersLock.Lock()
	delete(w.readers, r)
	w.readersLock.Unlock()
}

func (w *pebbleWriter) Close() error {
	return w.shutdown(true)
}

func (w *pebbleWriter) Rollback() error {
	return w.shutdown(false)
}

func (w *pebbleWriter) shutdown(commit bool) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var commitErr error
	if w.HasUncommittedChanges() {
		if commit {
			commitErr = w.commit()
		} else {
			commitErr = w.rollback()
		}
	}

	w.closeReaders()
	w.undo.close()
	if w.unregister != nil {
		w.unregister()
	}

	if err := w.db.Close(); err != nil {
		if commitErr != nil {
			return errors.Wrapf(commitErr, "close failed as well (%v)", err)
		}
		return errors.Wrap(err, "close index")
	}
	if commitErr != nil && commit {
		return errors.Wrap(commitErr, "commit on close")
	}
	return commitErr
}

// rollback writes the committed version of all documents changed since the
// last commit and flushes it, uncommitted documents may have been flushed
// already. It requires the lifecycle lock to be held exclusively.
func (w *pebbleWriter) rollback() error {
	b := w.db.NewBatch()
	defer b.Close()

	if err := w.undo.restore(b); err != nil {
		return errors.Wrap(err, "rollback")
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "rollback")
	}
	if err := w.db.Flush(); err != nil {
		return errors.Wrap(err, "rollback: flush")
	}

	w.committed.Store(w.changes.Load())
	w.logger.WithField("generation", w.generation.Load()).Debug("rolled back to last commit")
	return nil
}

func (w *pebbleWriter) closeReaders() {
	w.readersLock.Lock()
	readers := make([]*pebbleReader, 0, len(w.readers))
	for r := range w.readers {
		readers = append(readers, r)
	}
	w.readersLock.Unlock()

	for _, r := range readers {
		if err := r.Close(); err != nil {
			w.logger.WithError(err).Debug("close reader on writer shutdown")
		}
	}
}
