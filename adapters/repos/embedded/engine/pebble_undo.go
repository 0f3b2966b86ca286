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

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// undoLog keeps the state of the last commit. Memtable flushes persist
// uncommitted documents, so a rollback writes the committed version of every
// document touched since the commit back before the index is closed.
type undoLog struct {
	sync.Mutex
	base       *pebble.Snapshot
	touched    map[string]struct{}
	deletedAll bool
}

// reset moves the undo state to the current state of db, which must be the
// committed one.
func (u *undoLog) reset(db *pebble.DB) {
	u.Lock()
	defer u.Unlock()

	if u.base != nil {
		_ = u.base.Close()
	}
	u.base = db.NewSnapshot()
	u.touched = map[string]struct{}{}
	u.deletedAll = false
}

func (u *undoLog) touch(keys ...[]byte) {
	u.Lock()
	defer u.Unlock()

	if u.deletedAll {
		return
	}
	for _, key := range keys {
		u.touched[string(key)] = struct{}{}
	}
}

func (u *undoLog) touchAll() {
	u.Lock()
	defer u.Unlock()

	u.deletedAll = true
	u.touched = map[string]struct{}{}
}

// restore adds the writes to b which bring every touched document back to
// its committed version.
func (u *undoLog) restore(b *pebble.Batch) error {
	u.Lock()
	defer u.Unlock()

	if u.deletedAll {
		return u.restoreAll(b)
	}

	for key := range u.touched {
		val, closer, err := u.base.Get([]byte(key))
		if errors.Is(err, pebble.ErrNotFound) {
			if err := b.Delete([]byte(key), nil); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read committed version of %q", key)
		}
		err = b.Set([]byte(key), val, nil)
		closer.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (u *undoLog) restoreAll(b *pebble.Batch) error {
	if err := b.DeleteRange(docPrefix, docPrefixEnd, nil); err != nil {
		return err
	}

	it, err := u.base.NewIter(&pebble.IterOptions{
		LowerBound: docPrefix,
		UpperBound: docPrefixEnd,
	})
	if err != nil {
		return err
	}
	for it.First(); it.Valid(); it.Next() {
		if err := b.Set(it.Key(), it.Value(), nil); err != nil {
			it.Close()
			return err
		}
	}
	if err := it.Error(); err != nil {
		it.Close()
		return errors.Wrap(err, "read committed documents")
	}
	return it.Close()
}

func (u *undoLog) close() {
	u.Lock()
	defer u.Unlock()

	if u.base != nil {
		_ = u.base.Close()
		u.base = nil
	}
}
