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
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/segmentwriter/usecases/config"
)

const lockFileName = "LOCK"

type PebbleDirectoryConfig struct {
	Path      string
	IndexName string
	// FS defaults to the OS filesystem. Tests use vfs.NewMem().
	FS vfs.FS
	// Registerer receives a collector with engine internals for every open
	// writer. Nil disables it.
	Registerer prometheus.Registerer
}

type PebbleDirectory struct {
	cfg    PebbleDirectoryConfig
	logger logrus.FieldLogger
}

func NewPebbleDirectory(cfg PebbleDirectoryConfig, logger logrus.FieldLogger) *PebbleDirectory {
	if cfg.FS == nil {
		cfg.FS = vfs.Default
	}
	return &PebbleDirectory{
		cfg: cfg,
		logger: logger.WithFields(logrus.Fields{
			"action": "pebble_directory",
			"index":  cfg.IndexName,
			"path":   cfg.Path,
		}),
	}
}

func (d *PebbleDirectory) Name() string {
	return d.cfg.Path
}

func (d *PebbleDirectory) OpenWriter(cfg config.WriterConfig, scheduler MergeScheduler) (Writer, error) {
	if err := d.cfg.FS.MkdirAll(d.cfg.Path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create index directory %q", d.cfg.Path)
	}

	w := &pebbleWriter{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    d.logger,
		readers:   map[*pebbleReader]struct{}{},
	}

	opts := &pebble.Options{
		FS: d.cfg.FS,
		// a commit flushes the memtable into a segment, flushes before that
		// are undone by a rollback
		DisableWAL:                  true,
		DisableAutomaticCompactions: true,
		MemTableSize:                cfg.RAMBufferSizeBytes(),
		L0CompactionThreshold:       cfg.MergeFactor,
		L0StopWritesThreshold:       cfg.MergeFactor * 100,
		Logger:                      newPebbleLogger(d.logger, cfg.InfoStream),
		EventListener:               w.eventListener(),
	}

	db, err := pebble.Open(d.cfg.Path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open index directory %q", d.cfg.Path)
	}
	w.db = db

	if err := w.loadCommitInfo(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "read last commit")
	}
	w.undo.reset(db)

	if d.cfg.Registerer != nil {
		collector := newPebbleCollector(w, d.cfg.IndexName)
		if err := d.cfg.Registerer.Register(collector); err != nil {
			d.logger.WithError(err).Warn("engine metrics not registered")
		} else {
			w.unregister = func() { d.cfg.Registerer.Unregister(collector) }
		}
	}

	d.logger.WithFields(cfg.LogFields()).Debug("opened index writer")
	return w, nil
}

func (d *PebbleDirectory) ForceUnlock() error {
	path := d.cfg.FS.PathJoin(d.cfg.Path, lockFileName)
	if err := d.cfg.FS.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove lock file %q", path)
	}
	d.logger.WithField("lock_file", path).Warn("removed index directory lock")
	return nil
}
