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
	"github.com/vmihailenco/msgpack/v5"

	"github.com/weaviate/segmentwriter/entities/document"
)

// pebbleReader is a near-real-time view backed by a snapshot. It is closed
// automatically when its writer shuts down.
type pebbleReader struct {
	sync.Mutex
	snap   *pebble.Snapshot
	owner  *pebbleWriter
	closed bool
}

func (r *pebbleReader) Get(id string) (document.Document, bool, error) {
	r.Lock()
	defer r.Unlock()

	if r.closed {
		return document.Document{}, false, ErrClosed
	}

	val, closer, err := r.snap.Get(docKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return document.Document{}, false, nil
	}
	if err != nil {
		return document.Document{}, false, err
	}
	defer closer.Close()

	var doc document.Document
	if err := msgpack.Unmarshal(val, &doc); err != nil {
		return document.Document{}, false, errors.Wrapf(err, "decode document %q", id)
	}
	return doc, true, nil
}

func (r *pebbleReader) Count() (int, error) {
	r.Lock()
	defer r.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	it, err := r.snap.NewIter(&pebble.IterOptions{
		LowerBound: docPrefix,
		UpperBound: docPrefixEnd,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for it.First(); it.Valid(); it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		it.Close()
		return 0, err
	}
	return count, it.Close()
}

func (r *pebbleReader) Close() error {
	r.Lock()
	defer r.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.owner.forgetReader(r)
	return r.snap.Close()
}
