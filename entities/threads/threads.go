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

package threads

import (
	"fmt"

	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

// Provider starts named background goroutines. The name is attached as a
// pprof label so it shows up in goroutine dumps and profiles.
type Provider interface {
	Go(name string, f func())
}

type provider struct {
	logger logrus.FieldLogger
}

func NewProvider(logger logrus.FieldLogger) Provider {
	return &provider{logger: logger}
}

func (p *provider) Go(name string, f func()) {
	enterrors.NamedGoWrapper(name, f, p.logger)
}

// IndexContext is the human readable label of everything running on behalf
// of the writer of one index.
func IndexContext(indexName string) string {
	return fmt.Sprintf("Writer for index '%s'", indexName)
}

func MergeThreadName(label string, n int64) string {
	return fmt.Sprintf("%s - Merge Thread #%d", label, n)
}

func DelayedCommitThreadName(label string) string {
	return label + " - Delayed Commit"
}
