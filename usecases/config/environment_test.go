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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvSource(t *testing.T) {
	env := FromEnv("SEGMENTWRITER_")
	assert.Equal(t, "SEGMENTWRITER_INDEXWRITER_MERGE_FACTOR", env.VariableName(KeyMergeFactor))
	assert.Equal(t, "SEGMENTWRITER_ELASTICSEARCH_LAYOUT_STRATEGY", env.VariableName(KeyElasticsearchLayoutStrategy))

	t.Setenv("SEGMENTWRITER_INDEXWRITER_MERGE_FACTOR", "3")
	t.Setenv("SEGMENTWRITER_COMMIT_INTERVAL", "0")

	cfg, err := BuildWriterConfig(env)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MergeFactor)

	idx, err := BuildIndexConfig(env, "products")
	require.NoError(t, err)
	assert.Zero(t, idx.CommitInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SEGMENTWRITER_INDEXWRITER_INFOSTREAM", "on")

	src := ChainSource{FromEnv("SEGMENTWRITER_"), MapSource{KeyInfoStream: "false"}}
	cfg, err := BuildWriterConfig(src)
	require.NoError(t, err)
	assert.True(t, cfg.InfoStream)
}
