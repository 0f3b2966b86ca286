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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

const (
	KeyMaxBufferedDocs         = "indexwriter.max_buffered_docs"
	KeyRAMBufferSize           = "indexwriter.ram_buffer_size"
	KeyMergeFactor             = "indexwriter.merge_factor"
	KeyMergeMinSize            = "indexwriter.merge_min_size"
	KeyMergeMaxSize            = "indexwriter.merge_max_size"
	KeyMergeMaxOptimizeSize    = "indexwriter.merge_max_optimize_size"
	KeyMergeCalibrateByDeletes = "indexwriter.merge_calibrate_by_deletes"
	KeyInfoStream              = "indexwriter.infostream"
	KeyMergeMaxConcurrent      = "merge.max_concurrent"
	KeyCommitInterval          = "commit_interval"
	KeyDirectoryRoot           = "directory.root"
)

const (
	DefaultRAMBufferSizeMB        = 16
	DefaultMergeFactor            = 10
	DefaultMergeMinSizeMB         = 2
	DefaultMergeMaxSizeMB         = 2048
	DefaultMaxConcurrentMerges    = 1
	DefaultCommitInterval         = 1000 * time.Millisecond
	DefaultDirectoryRoot          = "./data"
	DefaultMergeCalibrateByDelete = true
)

// WriterConfig is the immutable configuration of a single index writer. A
// fresh value is built for every writer creation and never changed after.
type WriterConfig struct {
	// MaxBufferedDocs triggers a flush of the in-memory buffer after that many
	// documents. Zero disables the document based trigger.
	MaxBufferedDocs int
	RAMBufferSizeMB int

	MergeFactor             int
	MergeMinSizeMB          int
	MergeMaxSizeMB          int
	MergeMaxOptimizeSizeMB  int // zero means unlimited
	MergeCalibrateByDeletes bool

	InfoStream          bool
	MaxConcurrentMerges int
}

// BuildWriterConfig is pure: unknown keys are ignored, missing keys fall back
// to the engine defaults and malformed values fail with an error naming the
// offending key and its raw value.
func BuildWriterConfig(src PropertySource) (WriterConfig, error) {
	var (
		cfg WriterConfig
		err error
	)

	if cfg.MaxBufferedDocs, err = getNonNegativeInt(src, KeyMaxBufferedDocs, 0); err != nil {
		return WriterConfig{}, err
	}
	if cfg.RAMBufferSizeMB, err = getPositiveInt(src, KeyRAMBufferSize, DefaultRAMBufferSizeMB); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MergeFactor, err = getInt(src, KeyMergeFactor, DefaultMergeFactor); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MergeFactor < 2 {
		v, _ := src.Get(KeyMergeFactor)
		return WriterConfig{}, enterrors.NewErrConfiguration(KeyMergeFactor, v, "merge factor must be at least 2")
	}
	if cfg.MergeMinSizeMB, err = getNonNegativeInt(src, KeyMergeMinSize, DefaultMergeMinSizeMB); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MergeMaxSizeMB, err = getPositiveInt(src, KeyMergeMaxSize, DefaultMergeMaxSizeMB); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MergeMinSizeMB > cfg.MergeMaxSizeMB {
		v, _ := src.Get(KeyMergeMinSize)
		return WriterConfig{}, enterrors.NewErrConfiguration(KeyMergeMinSize, v,
			fmt.Sprintf("must not exceed %s (%d)", KeyMergeMaxSize, cfg.MergeMaxSizeMB))
	}
	if cfg.MergeMaxOptimizeSizeMB, err = getNonNegativeInt(src, KeyMergeMaxOptimizeSize, 0); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MergeCalibrateByDeletes, err = getBool(src, KeyMergeCalibrateByDeletes, DefaultMergeCalibrateByDelete); err != nil {
		return WriterConfig{}, err
	}
	if cfg.InfoStream, err = getBool(src, KeyInfoStream, false); err != nil {
		return WriterConfig{}, err
	}
	if cfg.MaxConcurrentMerges, err = getPositiveInt(src, KeyMergeMaxConcurrent, DefaultMaxConcurrentMerges); err != nil {
		return WriterConfig{}, err
	}

	return cfg, nil
}

func (c WriterConfig) RAMBufferSizeBytes() uint64 {
	return uint64(c.RAMBufferSizeMB) << 20
}

func (c WriterConfig) LogFields() logrus.Fields {
	return logrus.Fields{
		"max_buffered_docs":          c.MaxBufferedDocs,
		"ram_buffer_size_mb":         c.RAMBufferSizeMB,
		"merge_factor":               c.MergeFactor,
		"merge_min_size_mb":          c.MergeMinSizeMB,
		"merge_max_size_mb":          c.MergeMaxSizeMB,
		"merge_max_optimize_size_mb": c.MergeMaxOptimizeSizeMB,
		"merge_calibrate_by_deletes": c.MergeCalibrateByDeletes,
		"infostream":                 c.InfoStream,
		"max_concurrent_merges":      c.MaxConcurrentMerges,
	}
}

type IndexConfig struct {
	// CommitInterval bounds how long committed visibility may lag behind
	// mutations. Zero means every CommitOrDelay commits synchronously.
	CommitInterval time.Duration
	Directory      string
}

func BuildIndexConfig(src PropertySource, indexName string) (IndexConfig, error) {
	interval, err := getMillis(src, KeyCommitInterval, DefaultCommitInterval)
	if err != nil {
		return IndexConfig{}, err
	}

	return IndexConfig{
		CommitInterval: interval,
		Directory:      filepath.Join(getString(src, KeyDirectoryRoot, DefaultDirectoryRoot), indexName),
	}, nil
}
