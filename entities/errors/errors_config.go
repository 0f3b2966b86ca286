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

// ErrConfiguration is fatal: it is raised at setup time and never retried.
type ErrConfiguration struct {
	key    string
	value  string
	reason string
}

func (e ErrConfiguration) Error() string {
	if e.key == "" {
		return fmt.Sprintf("invalid configuration: %s", e.reason)
	}
	return fmt.Sprintf("invalid value for configuration property %q: %q: %s",
		e.key, e.value, e.reason)
}

// Key is the offending property key, empty if the error is not tied to a
// single property.
func (e ErrConfiguration) Key() string {
	return e.key
}

// Value is the raw value as it was found in the property source.
func (e ErrConfiguration) Value() string {
	return e.value
}

func NewErrConfiguration(key, value, reason string) ErrConfiguration {
	return ErrConfiguration{key: key, value: value, reason: reason}
}

func NewErrConfigurationf(format string, args ...interface{}) ErrConfiguration {
	return ErrConfiguration{reason: fmt.Sprintf(format, args...)}
}

func IsConfiguration(err error) bool {
	var target ErrConfiguration
	return errors.As(err, &target)
}

// ErrIndexNameConflict is raised when two indexes would target the same
// remote index name or alias.
type ErrIndexNameConflict struct {
	name   string
	first  string
	second string
}

func (e ErrIndexNameConflict) Error() string {
	return fmt.Sprintf("conflicting index names: indexes %q and %q both target the index name or alias %q",
		e.first, e.second, e.name)
}

// Indexes returns the already registered index first.
func (e ErrIndexNameConflict) Indexes() (string, string) {
	return e.first, e.second
}

func (e ErrIndexNameConflict) Name() string {
	return e.name
}

// Conflicting names are a configuration mistake.
func (e ErrIndexNameConflict) Unwrap() error {
	return NewErrConfigurationf("index %q conflicts with index %q", e.second, e.first)
}

func NewErrIndexNameConflict(name, first, second string) ErrIndexNameConflict {
	return ErrIndexNameConflict{name: name, first: first, second: second}
}
