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
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/segmentwriter/usecases/config"
)

type fakeScheduler struct {
	sync.Mutex
	mergeCalls       int
	backgroundErrors []error
}

func (s *fakeScheduler) Merge(MergeSource) {
	s.Lock()
	defer s.Unlock()
	s.mergeCalls++
}

func (s *fakeScheduler) HandleBackgroundError(err error) {
	s.Lock()
	defer s.Unlock()
	s.backgroundErrors = append(s.backgroundErrors, err)
}

func (s *fakeScheduler) calls() int {
	s.Lock()
	defer s.Unlock()
	return s.mergeCalls
}

func testWriterConfig(t *testing.T, overrides config.MapSource) config.WriterConfig {
	cfg, err := config.BuildWriterConfig(overrides)
	require.NoError(t, err)
	return cfg
}

func newTestDirectory(fs vfs.FS) *PebbleDirectory {
	logger, _ := test.NewNullLogger()
	return NewPebbleDirectory(PebbleDirectoryConfig{
		Path:      "/index/products",
		IndexName: "products",
		FS:        fs,
	}, logger)
}
