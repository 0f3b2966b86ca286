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

package indexing

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/usecases/config"
)

var errDiskFailure = errors.New("input/output error")

// brokenDirectory opens writers whose mutations fail while failing is set.
type brokenDirectory struct {
	opens   atomic.Int32
	unlocks atomic.Int32
	failing atomic.Bool

	// closeGate, if set, blocks closing writers until it is closed
	closeGate chan struct{}
	closeErr  error
}

func (d *brokenDirectory) Name() string {
	return "/broken"
}

func (d *brokenDirectory) OpenWriter(config.WriterConfig, engine.MergeScheduler) (engine.Writer, error) {
	d.opens.Add(1)
	return &brokenWriter{dir: d}, nil
}

func (d *brokenDirectory) ForceUnlock() error {
	d.unlocks.Add(1)
	return nil
}

type brokenWriter struct {
	dir   *brokenDirectory
	dirty atomic.Bool
}

func (w *brokenWriter) mutate() error {
	if w.dir.failing.Load() {
		return errDiskFailure
	}
	w.dirty.Store(true)
	return nil
}

func (w *brokenWriter) AddDocuments(...document.Document) error    { return w.mutate() }
func (w *brokenWriter) UpdateDocuments(...document.Document) error { return w.mutate() }
func (w *brokenWriter) DeleteDocuments(...string) error            { return w.mutate() }
func (w *brokenWriter) DeleteAll() error                           { return w.mutate() }

func (w *brokenWriter) HasUncommittedChanges() bool {
	return w.dirty.Load()
}

func (w *brokenWriter) Commit() error {
	if w.dir.failing.Load() {
		return errDiskFailure
	}
	w.dirty.Store(false)
	return nil
}

func (w *brokenWriter) ForceMerge(int) error {
	return nil
}

func (w *brokenWriter) OpenReader(bool) (engine.Reader, error) {
	return nil, engine.ErrClosed
}

func (w *brokenWriter) Close() error {
	if w.dir.closeGate != nil {
		<-w.dir.closeGate
	}
	return w.dir.closeErr
}

func (w *brokenWriter) Rollback() error {
	return nil
}

type recordingHandler struct {
	sync.Mutex
	events []failure.Context
}

func (h *recordingHandler) Handle(ctx failure.Context) {
	h.Lock()
	defer h.Unlock()
	h.events = append(h.events, ctx)
}

func (h *recordingHandler) recorded() []failure.Context {
	h.Lock()
	defer h.Unlock()
	return append([]failure.Context(nil), h.events...)
}
