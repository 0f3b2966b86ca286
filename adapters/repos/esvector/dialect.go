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

// Dialect holds what differs between supported cluster versions.
type Dialect struct {
	version Version
}

func newDialect(v Version) *Dialect {
	return &Dialect{version: v}
}

func (d *Dialect) Name() string {
	return "elasticsearch-" + d.version.String()
}

func (d *Dialect) Version() Version {
	return d.version
}

// fieldsMappingType is the type of the opaque "fields" object. Flattened
// fields are available from 7.3 on.
func (d *Dialect) fieldsMappingType() string {
	if d.version.AtLeast(7, 3) {
		return "flattened"
	}
	return "object"
}

// CreateIndexBody is the body of a create index request for the primary
// index of n, including its aliases.
func (d *Dialect) CreateIndexBody(n IndexNames) map[string]interface{} {
	body := map[string]interface{}{
		"mappings": map[string]interface{}{
			"dynamic": false,
			"properties": map[string]interface{}{
				"id":     map[string]interface{}{"type": "keyword"},
				"fields": map[string]interface{}{"type": d.fieldsMappingType()},
			},
		},
	}

	if n.UsesAliases() {
		aliases := map[string]interface{}{}
		if n.WriteIsAlias {
			aliases[n.Write] = map[string]interface{}{"is_write_index": true}
		}
		if n.ReadIsAlias {
			aliases[n.Read] = map[string]interface{}{}
		}
		body["aliases"] = aliases
	}
	return body
}

func (d *Dialect) PurgeQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}
}
