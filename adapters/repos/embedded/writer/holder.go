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
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/adapters/repos/embedded/engine"
	"github.com/weaviate/segmentwriter/adapters/repos/embedded/mergescheduler"
	"github.com/weaviate/segmentwriter/usecases/config"
)

// WriterHolder owns at most one live WriterHandle of an index. The handle is
// created lazily, the fast path of GetOrCreate does not lock.
type WriterHolder struct {
	cfg    Config
	label  string
	logger logrus.FieldLogger

	current  atomic.Pointer[WriterHandle]
	initLock sync.Mutex
	sequence uint64 // guarded by initLock
}

func NewWriterHolder(cfg Config, logger logrus.FieldLogger) *WriterHolder {
	cfg.setDefaults(logger)
	return &WriterHolder{
		cfg:   cfg,
		label: cfg.label(),
		logger: logger.WithFields(logrus.Fields{
			"action": "index_writer",
			"index":  cfg.IndexName,
		}),
	}
}

func (h *WriterHolder) GetOrCreate() (*WriterHandle, error) {
	if handle := h.current.Load(); handle != nil {
		return handle, nil
	}

	h.initLock.Lock()
	defer h.initLock.Unlock()

	if handle := h.current.Load(); handle != nil {
		return handle, nil
	}

	handle, err := h.create()
	if err != nil {
		return nil, err
	}
	h.current.Store(handle)
	return handle, nil
}

func (h *WriterHolder) create() (*WriterHandle, error) {
	writerCfg, err := config.BuildWriterConfig(h.cfg.Properties)
	if err != nil {
		return nil, err
	}

	scheduler := mergescheduler.New(h.cfg.IndexName, h.label, h.cfg.Threads,
		h.cfg.FailureHandler, h.logger, h.cfg.Metrics, writerCfg.MaxConcurrentMerges)

	w, err := h.cfg.Directory.OpenWriter(writerCfg, scheduler)
	if err != nil {
		scheduler.Close()
		return nil, errors.Wrapf(err, "open directory %q", h.cfg.Directory.Name())
	}

	h.sequence++
	handle := &WriterHandle{
		Writer:    w,
		sequence:  h.sequence,
		scheduler: scheduler,
		metrics:   h.cfg.Metrics,
	}
	h.cfg.Metrics.WriterOpened()

	h.logger.WithFields(writerCfg.LogFields()).
		WithField("sequence", handle.sequence).
		Debug("created index writer")
	return handle, nil
}

// Current returns the live handle without creating one.
func (h *WriterHolder) Current() *WriterHandle {
	return h.current.Load()
}

// Close closes the live handle, if any. Closing a holder without a live
// handle is a no-op.
func (h *WriterHolder) Close() error {
	h.initLock.Lock()
	defer h.initLock.Unlock()

	handle := h.current.Swap(nil)
	if handle == nil {
		return nil
	}
	return h.closeLocked(handle)
}

// closeHandle closes handle and forgets it if it is still the live one. A
// stale handle never affects a newer one.
func (h *WriterHolder) closeHandle(handle *WriterHandle) error {
	h.initLock.Lock()
	defer h.initLock.Unlock()

	h.current.CompareAndSwap(handle, nil)
	return h.closeLocked(handle)
}

func (h *WriterHolder) closeLocked(handle *WriterHandle) error {
	if err := handle.Close(); err != nil {
		return errors.Wrapf(err, "close index writer #%d", handle.sequence)
	}
	h.logger.WithField("sequence", handle.sequence).Debug("closed index writer")
	return nil
}

// ForceLockRelease discards the live handle without committing and removes
// the directory lock. It is a recovery action for writers which are known to
// be broken. Holders owned by a WriterProvider are released through
// WriterProvider.ForceLockRelease.
func (h *WriterHolder) ForceLockRelease() error {
	h.initLock.Lock()
	defer h.initLock.Unlock()

	return h.forceReleaseLocked(h.current.Swap(nil))
}

// releaseAfterFailure force releases handle. If a newer handle is live
// already, handle is only rolled back and the directory lock is left alone.
func (h *WriterHolder) releaseAfterFailure(handle *WriterHandle) error {
	h.initLock.Lock()
	defer h.initLock.Unlock()

	if current := h.current.Load(); current != nil && current != handle {
		return handle.Rollback()
	}
	h.current.CompareAndSwap(handle, nil)
	return h.forceReleaseLocked(handle)
}

func (h *WriterHolder) forceReleaseLocked(handle *WriterHandle) error {
	var result *multierror.Error
	fields := logrus.Fields{"directory": h.cfg.Directory.Name()}

	if handle != nil {
		fields["sequence"] = handle.sequence
		if err := handle.Rollback(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "rollback index writer"))
		}
	}
	if err := h.cfg.Directory.ForceUnlock(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "release directory lock"))
	}

	h.cfg.Metrics.ForcedLockRelease()
	h.logger.WithFields(fields).Warn("forced release of the index writer lock after a previous failure")
	return result.ErrorOrNil()
}

// OpenNearRealTimeReader opens a reader on the live handle which includes
// uncommitted changes. It reports false if there is no live handle, meaning
// nothing was indexed in this session yet.
func (h *WriterHolder) OpenNearRealTimeReader(applyDeletes bool) (engine.Reader, bool, error) {
	handle := h.current.Load()
	if handle == nil {
		return nil, false, nil
	}

	r, err := handle.OpenReader(applyDeletes)
	if errors.Is(err, engine.ErrClosed) {
		// lost a race against close
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "open near real-time reader")
	}
	return r, true, nil
}
