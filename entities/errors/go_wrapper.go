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
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

func GoWrapper(f func(), logger logrus.FieldLogger) {
	go func() {
		defer func() {
			if !recoveryDisabled() {
				if r := recover(); r != nil {
					logger.Errorf("Recovered from panic: %v", r)
					debug.PrintStack()
				}
			}
		}()
		f()
	}()
}

// NamedGoWrapper behaves like GoWrapper, but runs f with the pprof label
// "thread" set to name so the goroutine can be identified in profiles and
// goroutine dumps.
func NamedGoWrapper(name string, f func(), logger logrus.FieldLogger) {
	GoWrapper(func() {
		RunNamed(name, f)
	}, logger.WithField("thread", name))
}

// RunNamed runs f on the current goroutine with the pprof label "thread" set
// to name.
func RunNamed(name string, f func()) {
	pprof.Do(context.Background(), pprof.Labels("thread", name), func(context.Context) {
		f()
	})
}

// PanicAsError converts a recovered panic value to an error. It returns nil
// if r is nil.
func PanicAsError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic occurred: %w", err)
	}
	return fmt.Errorf("panic occurred: %v", r)
}

func recoveryDisabled() bool {
	switch os.Getenv("DISABLE_RECOVERY_ON_PANIC") {
	case "on", "enabled", "1", "true":
		return true
	default:
		return false
	}
}
