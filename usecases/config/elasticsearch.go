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
	"fmt"
	"time"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

const (
	KeyElasticsearchHosts               = "elasticsearch.hosts"
	KeyElasticsearchUsername            = "elasticsearch.username"
	KeyElasticsearchPassword            = "elasticsearch.password"
	KeyElasticsearchAPIKey              = "elasticsearch.api_key"
	KeyElasticsearchVersion             = "elasticsearch.version"
	KeyElasticsearchVersionCheckEnabled = "elasticsearch.version_check.enabled"
	KeyElasticsearchLayoutStrategy      = "elasticsearch.layout.strategy"
	KeyElasticsearchFlushInterval       = "elasticsearch.indexing.flush_interval"
	KeyElasticsearchFlushBytes          = "elasticsearch.indexing.flush_bytes"
	KeyElasticsearchWorkers             = "elasticsearch.indexing.workers"
	KeyElasticsearchStartupMaxRetries   = "elasticsearch.startup.max_retries"
)

const (
	LayoutSimple  = "simple"
	LayoutNoAlias = "no-alias"
)

type Elasticsearch struct {
	Hosts    []string
	Username string
	Password string
	APIKey   string

	// Version is a prefix such as "8" or "8.11". It is required to be at
	// least major.minor when the version check is disabled.
	Version             string
	VersionCheckEnabled bool

	LayoutStrategy string

	FlushInterval time.Duration
	FlushBytes    int
	// Workers of the bulk indexer, zero uses the client default.
	Workers int

	StartupMaxRetries int
}

func BuildElasticsearchConfig(src PropertySource) (Elasticsearch, error) {
	cfg := Elasticsearch{
		Hosts:          getList(src, KeyElasticsearchHosts, []string{"http://localhost:9200"}),
		Username:       getString(src, KeyElasticsearchUsername, ""),
		Password:       getString(src, KeyElasticsearchPassword, ""),
		APIKey:         getString(src, KeyElasticsearchAPIKey, ""),
		Version:        getString(src, KeyElasticsearchVersion, ""),
		LayoutStrategy: getString(src, KeyElasticsearchLayoutStrategy, LayoutSimple),
	}

	var err error
	if cfg.VersionCheckEnabled, err = getBool(src, KeyElasticsearchVersionCheckEnabled, true); err != nil {
		return Elasticsearch{}, err
	}
	if cfg.FlushInterval, err = getMillis(src, KeyElasticsearchFlushInterval, time.Second); err != nil {
		return Elasticsearch{}, err
	}
	if cfg.FlushBytes, err = getPositiveInt(src, KeyElasticsearchFlushBytes, 5<<20); err != nil {
		return Elasticsearch{}, err
	}
	if cfg.Workers, err = getNonNegativeInt(src, KeyElasticsearchWorkers, 0); err != nil {
		return Elasticsearch{}, err
	}
	if cfg.StartupMaxRetries, err = getNonNegativeInt(src, KeyElasticsearchStartupMaxRetries, 5); err != nil {
		return Elasticsearch{}, err
	}

	switch cfg.LayoutStrategy {
	case LayoutSimple, LayoutNoAlias:
	default:
		return Elasticsearch{}, enterrors.NewErrConfiguration(KeyElasticsearchLayoutStrategy,
			cfg.LayoutStrategy, fmt.Sprintf("expected one of %q, %q", LayoutSimple, LayoutNoAlias))
	}

	if cfg.APIKey != "" && cfg.Username != "" {
		return Elasticsearch{}, enterrors.NewErrConfiguration(KeyElasticsearchAPIKey, "<redacted>",
			"cannot be combined with "+KeyElasticsearchUsername)
	}

	return cfg, nil
}
