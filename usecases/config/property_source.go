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
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
)

// PropertySource is a flat key/value namespace using dotted keys, for example
// "indexwriter.merge_factor".
type PropertySource interface {
	Get(key string) (string, bool)
}

type MapSource map[string]string

func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ChainSource returns the value of the first source which has the key.
type ChainSource []PropertySource

func (c ChainSource) Get(key string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// LoadYAMLFile reads a YAML document and flattens it into dotted keys. Nested
// mappings become key prefixes, sequences are joined with commas.
func LoadYAMLFile(path string) (MapSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %q", path)
	}
	src, err := ParseYAML(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config file %q", path)
	}
	return src, nil
}

func ParseYAML(raw []byte) (MapSource, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	out := MapSource{}
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, in map[string]interface{}, out MapSource) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch typed := v.(type) {
		case map[string]interface{}:
			flatten(key, typed, out)
		case []interface{}:
			parts := make([]string, len(typed))
			for i, elem := range typed {
				parts[i] = fmt.Sprint(elem)
			}
			out[key] = strings.Join(parts, ",")
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(typed)
		}
	}
}

// Keys returns all keys of the source in sorted order.
func (m MapSource) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func getString(src PropertySource, key, def string) string {
	v, ok := src.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func getInt(src PropertySource, key string, def int) (int, error) {
	v, ok := src.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	asInt, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, enterrors.NewErrConfiguration(key, v, "expected an integer")
	}
	return asInt, nil
}

func getPositiveInt(src PropertySource, key string, def int) (int, error) {
	asInt, err := getInt(src, key, def)
	if err != nil {
		return 0, err
	}
	if asInt <= 0 {
		v, _ := src.Get(key)
		return 0, enterrors.NewErrConfiguration(key, v, "expected a positive integer")
	}
	return asInt, nil
}

func getNonNegativeInt(src PropertySource, key string, def int) (int, error) {
	asInt, err := getInt(src, key, def)
	if err != nil {
		return 0, err
	}
	if asInt < 0 {
		v, _ := src.Get(key)
		return 0, enterrors.NewErrConfiguration(key, v, "expected a non-negative integer")
	}
	return asInt, nil
}

func getBool(src PropertySource, key string, def bool) (bool, error) {
	v, ok := src.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "enabled":
		return true, nil
	case "false", "0", "off", "disabled":
		return false, nil
	default:
		return false, enterrors.NewErrConfiguration(key, v, "expected a boolean")
	}
}

// getMillis reads a non-negative number of milliseconds.
func getMillis(src PropertySource, key string, def time.Duration) (time.Duration, error) {
	ms, err := getNonNegativeInt(src, key, int(def/time.Millisecond))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getList(src PropertySource, key string, def []string) []string {
	v, ok := src.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
