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

package esvector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/usecases/config"
)

var supportedMajors = []int{7, 8, 9}

// Version of the remote cluster. Minor and Patch are -1 when unknown, which
// only happens for configured versions.
type Version struct {
	Major int
	Minor int
	Patch int
}

func ParseVersion(s string) (Version, error) {
	v := Version{Major: -1, Minor: -1, Patch: -1}

	s = strings.TrimSpace(s)
	// drop qualifiers such as "-SNAPSHOT"
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return v, errors.New("empty version")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return v, errors.Errorf("invalid version %q", s)
	}
	targets := []*int{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return v, errors.Errorf("invalid version %q", s)
		}
		*targets[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	switch {
	case v.Minor < 0:
		return strconv.Itoa(v.Major)
	case v.Patch < 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// Matches reports whether the actual version v starts with prefix, so "8"
// and "8.11" both match 8.11.3.
func (v Version) Matches(prefix Version) bool {
	if v.Major != prefix.Major {
		return false
	}
	if prefix.Minor >= 0 && v.Minor != prefix.Minor {
		return false
	}
	return prefix.Patch < 0 || v.Patch == prefix.Patch
}

func (v Version) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

func (v Version) supported() bool {
	for _, major := range supportedMajors {
		if v.Major == major {
			return true
		}
	}
	return false
}

type versionNegotiator struct {
	cfg    config.Elasticsearch
	logger logrus.FieldLogger
	// initial wait between probes, the backoff grows from there
	initialInterval time.Duration
}

func (n *versionNegotiator) negotiate(ctx context.Context, client *elasticsearch.Client) (Version, error) {
	var configured *Version
	if n.cfg.Version != "" {
		v, err := ParseVersion(n.cfg.Version)
		if err != nil {
			return Version{}, enterrors.NewErrConfiguration(config.KeyElasticsearchVersion,
				n.cfg.Version, err.Error())
		}
		configured = &v
	}

	if !n.cfg.VersionCheckEnabled {
		if configured == nil || configured.Minor < 0 {
			return Version{}, enterrors.NewErrConfiguration(config.KeyElasticsearchVersion, n.cfg.Version,
				"a version with at least major and minor is required when "+
					config.KeyElasticsearchVersionCheckEnabled+" is false")
		}
		if !configured.supported() {
			return Version{}, unsupportedVersion(*configured)
		}
		n.logger.WithField("version", configured.String()).
			Info("elasticsearch version check disabled, using the configured version")
		return *configured, nil
	}

	actual, err := n.probe(ctx, client)
	if err != nil {
		return Version{}, err
	}
	if !actual.supported() {
		return Version{}, unsupportedVersion(actual)
	}
	if configured != nil && !actual.Matches(*configured) {
		return Version{}, enterrors.NewErrConfiguration(config.KeyElasticsearchVersion, n.cfg.Version,
			fmt.Sprintf("the cluster runs version %s", actual))
	}

	n.logger.WithField("version", actual.String()).Info("negotiated elasticsearch version")
	return actual, nil
}

func (n *versionNegotiator) probe(ctx context.Context, client *elasticsearch.Client) (Version, error) {
	policy := backoff.NewExponentialBackOff()
	if n.initialInterval > 0 {
		policy.InitialInterval = n.initialInterval
	}
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(n.cfg.StartupMaxRetries)), ctx)

	var version Version
	err := backoff.RetryNotify(func() error {
		v, err := n.info(ctx, client)
		if err != nil {
			return err
		}
		version = v
		return nil
	}, retries, func(err error, next time.Duration) {
		n.logger.WithError(err).WithField("retry_in", next).
			Warn("elasticsearch version probe failed")
	})
	if err != nil {
		return Version{}, errors.Wrap(err, "probe elasticsearch version")
	}
	return version, nil
}

type infoResponse struct {
	Version struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

func (n *versionNegotiator) info(ctx context.Context, client *elasticsearch.Client) (Version, error) {
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return Version{}, err
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return Version{}, errors.Errorf("info request failed [%s]: %s", res.Status(), body)
	}

	var parsed infoResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Version{}, backoff.Permanent(errors.Wrap(err, "decode info response"))
	}
	if parsed.Version.Distribution != "" && parsed.Version.Distribution != "elasticsearch" {
		return Version{}, backoff.Permanent(errors.Errorf("unsupported distribution %q",
			parsed.Version.Distribution))
	}

	v, err := ParseVersion(parsed.Version.Number)
	if err != nil {
		return Version{}, backoff.Permanent(err)
	}
	return v, nil
}

func unsupportedVersion(v Version) error {
	return errors.Errorf("elasticsearch version %s is not supported, supported major versions are %v",
		v, supportedMajors)
}
