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
	"os"
	"strings"
)

// EnvSource resolves dotted keys from environment variables. The key
// "indexwriter.merge_factor" with prefix "SEGMENTWRITER_" is looked up as
// SEGMENTWRITER_INDEXWRITER_MERGE_FACTOR.
type EnvSource struct {
	Prefix string
}

func FromEnv(prefix string) EnvSource {
	return EnvSource{Prefix: prefix}
}

func (e EnvSource) Get(key string) (string, bool) {
	return os.LookupEnv(e.VariableName(key))
}

func (e EnvSource) VariableName(key string) string {
	return e.Prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
