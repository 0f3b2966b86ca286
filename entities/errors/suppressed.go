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
	"strings"

	"github.com/hashicorp/go-multierror"
)

// SuppressedError keeps the original cause of a failure in front and carries
// errors which happened while handling it, typically while closing resources.
// errors.Is and errors.As match against the cause only.
type SuppressedError struct {
	cause      error
	suppressed *multierror.Error
}

func (e *SuppressedError) Error() string {
	msgs := make([]string, len(e.suppressed.Errors))
	for i, err := range e.suppressed.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%v (suppressed: %s)", e.cause, strings.Join(msgs, "; "))
}

func (e *SuppressedError) Unwrap() error {
	return e.cause
}

// Cause makes the error compatible with github.com/pkg/errors.Cause.
func (e *SuppressedError) Cause() error {
	return e.cause
}

func (e *SuppressedError) Suppressed() []error {
	return e.suppressed.Errors
}

// WithSuppressed attaches suppressed to cause. Nil suppressed errors are
// skipped, and cause is returned as is if nothing is left. If cause is nil the
// suppressed errors become the cause.
func WithSuppressed(cause error, suppressed ...error) error {
	var merr *multierror.Error
	for _, err := range suppressed {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if merr == nil {
		return cause
	}
	if cause == nil {
		if len(merr.Errors) == 1 {
			return merr.Errors[0]
		}
		return merr.ErrorOrNil()
	}

	if existing, ok := cause.(*SuppressedError); ok {
		all := make([]error, 0, len(existing.suppressed.Errors)+len(merr.Errors))
		all = append(all, existing.suppressed.Errors...)
		return &SuppressedError{
			cause:      existing.cause,
			suppressed: multierror.Append(nil, append(all, merr.Errors...)...),
		}
	}

	return &SuppressedError{cause: cause, suppressed: merr}
}

// Suppressed returns all errors suppressed anywhere in the chain of err.
func Suppressed(err error) []error {
	var out []error
	for err != nil {
		var s *SuppressedError
		if !errors.As(err, &s) {
			break
		}
		out = append(out, s.suppressed.Errors...)
		err = s.cause
	}
	return out
}
