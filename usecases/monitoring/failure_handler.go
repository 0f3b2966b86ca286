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

package monitoring

import (
	"github.com/weaviate/segmentwriter/entities/failure"
)

// FailureHandler counts every failure event before passing it on to next.
func FailureHandler(m *Metrics, next failure.Handler) failure.Handler {
	return failure.HandlerFunc(func(ctx failure.Context) {
		if m != nil {
			m.FailureEvents.WithLabelValues(ctx.IndexName, ctx.FailingOperation).Inc()
		}
		if next != nil {
			next.Handle(ctx)
		}
	})
}
