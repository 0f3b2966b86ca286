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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSuppressed(t *testing.T) {
	cause := errors.New("disk full")
	closeErr := errors.New("close failed")
	unlockErr := errors.New("unlock failed")

	t.Run("nothing to suppress keeps the cause", func(t *testing.T) {
		err := WithSuppressed(cause, nil, nil)
		assert.Same(t, cause, err)
	})

	t.Run("original cause stays in front", func(t *testing.T) {
		err := WithSuppressed(cause, closeErr)
		require.Error(t, err)

		assert.True(t, errors.Is(err, cause))
		assert.False(t, errors.Is(err, closeErr))
		assert.Equal(t, "disk full (suppressed: close failed)", err.Error())
		assert.Equal(t, []error{closeErr}, Suppressed(err))
	})

	t.Run("suppressing twice accumulates", func(t *testing.T) {
		err := WithSuppressed(WithSuppressed(cause, closeErr), unlockErr)

		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, []error{closeErr, unlockErr}, Suppressed(err))
	})

	t.Run("wrapped suppressed errors are found", func(t *testing.T) {
		err := fmt.Errorf("commit: %w", WithSuppressed(cause, closeErr))

		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, []error{closeErr}, Suppressed(err))
	})

	t.Run("typed causes stay reachable", func(t *testing.T) {
		err := WithSuppressed(NewErrCommit("products", cause), closeErr)

		var commitErr ErrCommit
		require.True(t, errors.As(err, &commitErr))
		assert.Equal(t, "products", commitErr.Index())
	})

	t.Run("without a cause the suppressed error is returned", func(t *testing.T) {
		err := WithSuppressed(nil, closeErr)
		assert.Same(t, closeErr, err)
	})
}

func TestErrorKinds(t *testing.T) {
	t.Run("configuration error names key and value", func(t *testing.T) {
		err := NewErrConfiguration("indexwriter.merge_factor", "ten", "expected an integer")
		assert.Equal(t,
			`invalid value for configuration property "indexwriter.merge_factor": "ten": expected an integer`,
			err.Error())
		assert.True(t, IsConfiguration(err))
		assert.True(t, IsConfiguration(fmt.Errorf("setup: %w", err)))
	})

	t.Run("index name conflicts are configuration errors", func(t *testing.T) {
		err := NewErrIndexNameConflict("products-write", "products", "orders")
		assert.Contains(t, err.Error(), `"products"`)
		assert.Contains(t, err.Error(), `"orders"`)
		assert.True(t, IsConfiguration(err))
	})

	t.Run("not started is an internal consistency error", func(t *testing.T) {
		err := NewErrNotStarted("elasticsearch link")
		assert.True(t, errors.Is(err, ErrInternalConsistency))
		assert.Contains(t, err.Error(), "elasticsearch link is not started")
	})

	t.Run("panics become errors", func(t *testing.T) {
		assert.Nil(t, PanicAsError(nil))
		assert.EqualError(t, PanicAsError("boom"), "panic occurred: boom")

		inner := errors.New("inner")
		assert.True(t, errors.Is(PanicAsError(inner), inner))
	})
}
