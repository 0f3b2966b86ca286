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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrWriterClosed is returned for operations on a writer whose commit
	// coordinator has already been closed.
	ErrWriterClosed = errors.New("index writer is closed")

	// ErrInternalConsistency marks errors which can only be caused by a
	// programming mistake, such as using a component before it was started.
	ErrInternalConsistency = errors.New("internal consistency error")
)

// ErrWriterOpen is returned when the index writer cannot be created, e.g.
// because another process holds the directory lock or the index metadata is
// corrupt.
type ErrWriterOpen struct {
	index string
	err   error
}

func (e ErrWriterOpen) Error() string {
	return fmt.Sprintf("unable to open index writer for index %q: %v", e.index, e.err)
}

func (e ErrWriterOpen) Unwrap() error {
	return e.err
}

func (e ErrWriterOpen) Index() string {
	return e.index
}

func NewErrWriterOpen(index string, err error) ErrWriterOpen {
	return ErrWriterOpen{index: index, err: err}
}

// ErrCommit wraps a failure of the underlying engine's commit. It does not
// imply the writer was closed.
type ErrCommit struct {
	index string
	err   error
}

func (e ErrCommit) Error() string {
	return fmt.Sprintf("unable to commit index %q: %v", e.index, e.err)
}

func (e ErrCommit) Unwrap() error {
	return e.err
}

func (e ErrCommit) Index() string {
	return e.index
}

func NewErrCommit(index string, err error) ErrCommit {
	return ErrCommit{index: index, err: err}
}

// ErrMerge is only ever delivered to a failure handler, merges run in the
// background.
type ErrMerge struct {
	index string
	err   error
}

func (e ErrMerge) Error() string {
	return fmt.Sprintf("unable to merge segments of index %q: %v", e.index, e.err)
}

func (e ErrMerge) Unwrap() error {
	return e.err
}

func (e ErrMerge) Index() string {
	return e.index
}

func NewErrMerge(index string, err error) ErrMerge {
	return ErrMerge{index: index, err: err}
}

// NewErrNotStarted is an internal consistency error for components accessed
// before their start routine completed.
func NewErrNotStarted(component string) error {
	return fmt.Errorf("%w: %s is not started", ErrInternalConsistency, component)
}
