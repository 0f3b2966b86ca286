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

package mergescheduler

import (
	"context"
	"sync"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/entities/failure"
)

type fakeThreads struct {
	sync.Mutex
	names []string
}

func (f *fakeThreads) Go(name string, fn func()) {
	f.Lock()
	f.names = append(f.names, name)
	f.Unlock()
	go fn()
}

func (f *fakeThreads) started() []string {
	f.Lock()
	defer f.Unlock()
	return append([]string(nil), f.names...)
}

type fakeMerge struct {
	run func(ctx context.Context) error
}

func (m *fakeMerge) Run(ctx context.Context) error {
	return m.run(ctx)
}

func (m *fakeMerge) String() string {
	return "fake merge"
}

type fakeSource struct {
	sync.Mutex
	pending []engine.Merge
}

func newFakeSource(merges ...engine.Merge) *fakeSource {
	return &fakeSource{pending: merges}
}

func (s *fakeSource) NextMerge() (engine.Merge, bool) {
	s.Lock()
	defer s.Unlock()
	if len(s.pending) == 0 {
		return nil, false
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	return m, true
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
