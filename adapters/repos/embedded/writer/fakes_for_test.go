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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/entities/document"
	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/entities/scheduling"
	"github.com/weaviate/segmentwriter/usecases/config"
)

type manualClock struct {
	sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
}

const (
	taskPending = iota
	taskCancelled
	taskRan
)

type manualTask struct {
	exec  *manualExecutor
	name  string
	delay time.Duration
	at    time.Time
	f     func()
	state int
}

func (t *manualTask) Cancel() bool {
	t.exec.Lock()
	defer t.exec.Unlock()
	if t.state != taskPending {
		return false
	}
	t.state = taskCancelled
	return true
}

// manualExecutor only runs tasks when asked to, against a manualClock.
type manualExecutor struct {
	sync.Mutex
	clock *manualClock
	tasks []*manualTask
}

func newManualExecutor(clock *manualClock) *manualExecutor {
	return &manualExecutor{clock: clock}
}

func (e *manualExecutor) Schedule(name string, delay time.Duration, f func()) scheduling.Task {
	e.Lock()
	defer e.Unlock()
	t := &manualTask{exec: e, name: name, delay: delay, at: e.clock.Now().Add(delay), f: f}
	e.tasks = append(e.tasks, t)
	return t
}

func (e *manualExecutor) pending() []*manualTask {
	e.Lock()
	defer e.Unlock()
	var out []*manualTask
	for _, t := range e.tasks {
		if t.state == taskPending {
			out = append(out, t)
		}
	}
	return out
}

func (e *manualExecutor) scheduledCount() int {
	e.Lock()
	defer e.Unlock()
	return len(e.tasks)
}

// runDue runs all pending tasks which are due, or all pending tasks if
// ignoreTime is set, simulating an early firing timer.
func (e *manualExecutor) run(ignoreTime bool) int {
	e.Lock()
	now := e.clock.Now()
	var due []*manualTask
	for _, t := range e.tasks {
		if t.state == taskPending && (ignoreTime || !t.at.After(now)) {
			t.state = taskRan
			due = append(due, t)
		}
	}
	e.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (e *manualExecutor) runDue() int {
	return e.run(false)
}

// events records the order of directory level operations.
type events struct {
	sync.Mutex
	log []string
}

func (e *events) add(format string, args ...interface{}) {
	e.Lock()
	defer e.Unlock()
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) all() []string {
	e.Lock()
	defer e.Unlock()
	return append([]string(nil), e.log...)
}

type fakeDirectory struct {
	sync.Mutex
	events     *events
	openDelay  time.Duration
	openErr    error
	unlockErr  error
	writers    []*fakeWriter
	schedulers []engine.MergeScheduler
	configs    []config.WriterConfig

	// applied to every writer opened
	rollbackDelay time.Duration
	rollbackErr   error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{events: &events{}}
}

func (d *fakeDirectory) Name() string {
	return "/fake/products"
}

func (d *fakeDirectory) OpenWriter(cfg config.WriterConfig, scheduler engine.MergeScheduler) (engine.Writer, error) {
	time.Sleep(d.openDelay)

	d.Lock()
	defer d.Unlock()

	if d.openErr != nil {
		return nil, d.openErr
	}

	n := len(d.writers) + 1
	w := &fakeWriter{
		n:             n,
		events:        d.events,
		rollbackDelay: d.rollbackDelay,
		rollbackErr:   d.rollbackErr,
	}
	d.writers = append(d.writers, w)
	d.schedulers = append(d.schedulers, scheduler)
	d.configs = append(d.configs, cfg)
	d.events.add("open #%d", n)
	return w, nil
}

func (d *fakeDirectory) ForceUnlock() error {
	d.events.add("unlock")
	return d.unlockErr
}

func (d *fakeDirectory) opens() int {
	d.Lock()
	defer d.Unlock()
	return len(d.writers)
}

func (d *fakeDirectory) writer(i int) *fakeWriter {
	d.Lock()
	defer d.Unlock()
	return d.writers[i]
}

func (d *fakeDirectory) scheduler(i int) engine.MergeScheduler {
	d.Lock()
	defer d.Unlock()
	return d.schedulers[i]
}

type fakeWriter struct {
	n      int
	events *events

	dirty   atomic.Bool
	commits atomic.Int32

	// commitGate, if set, blocks every commit until it is closed
	commitGate    chan struct{}
	commitStarted chan struct{}
	commitErr     atomic.Value

	inCommit           atomic.Bool
	closedDuringCommit atomic.Bool
	closed             atomic.Bool
	rolledBack         atomic.Bool
	closeErr           error
	rollbackDelay      time.Duration
	rollbackErr        error
}

func (w *fakeWriter) AddDocuments(...document.Document) error {
	return w.mutate()
}

func (w *fakeWriter) UpdateDocuments(...document.Document) error {
	return w.mutate()
}

func (w *fakeWriter) DeleteDocuments(...string) error {
	return w.mutate()
}

func (w *fakeWriter) DeleteAll() error {
	return w.mutate()
}

func (w *fakeWriter) mutate() error {
	if w.closed.Load() {
		return engine.ErrClosed
	}
	w.dirty.Store(true)
	return nil
}

func (w *fakeWriter) HasUncommittedChanges() bool {
	return w.dirty.Load()
}

type commitFailure struct {
	err error
}

func (w *fakeWriter) failCommits(err error) {
	w.commitErr.Store(commitFailure{err: err})
}

func (w *fakeWriter) Commit() error {
	if w.closed.Load() {
		return engine.ErrClosed
	}

	w.inCommit.Store(true)
	defer w.inCommit.Store(false)

	if w.commitStarted != nil {
		w.commitStarted <- struct{}{}
	}
	if w.commitGate != nil {
		<-w.commitGate
	}
	if f, ok := w.commitErr.Load().(commitFailure); ok && f.err != nil {
		return f.err
	}

	w.dirty.Store(false)
	w.commits.Add(1)
	return nil
}

func (w *fakeWriter) ForceMerge(int) error {
	if w.closed.Load() {
		return engine.ErrClosed
	}
	return nil
}

func (w *fakeWriter) OpenReader(bool) (engine.Reader, error) {
	if w.closed.Load() {
		return nil, engine.ErrClosed
	}
	return fakeReader{}, nil
}

func (w *fakeWriter) Close() error {
	if w.inCommit.Load() {
		w.closedDuringCommit.Store(true)
	}
	w.closed.Store(true)
	w.events.add("close #%d", w.n)
	return w.closeErr
}

func (w *fakeWriter) Rollback() error {
	time.Sleep(w.rollbackDelay)
	w.closed.Store(true)
	w.rolledBack.Store(true)
	w.events.add("rollback #%d", w.n)
	return w.rollbackErr
}

type fakeReader struct{}

func (fakeReader) Get(string) (document.Document, bool, error) {
	return document.Document{}, false, nil
}

func (fakeReader) Count() (int, error) {
	return 0, nil
}

func (fakeReader) Close() error {
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

type fakeMerge struct {
	err error
}

func (m fakeMerge) Run(context.Context) error {
	return m.err
}

func (m fakeMerge) String() string {
	return "fake merge"
}

// singleMerge offers one merge, once.
type singleMerge struct {
	sync.Once
	m engine.Merge
}

func (s *singleMerge) NextMerge() (engine.Merge, bool) {
	offered := false
	s.Do(func() { offered = true })
	return s.m, offered
}
