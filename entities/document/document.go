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

package document

import (
	"fmt"

	"github.com/pkg/errors"
)

// Document is the unit of indexing. Fields are opaque to the writer layer.
type Document struct {
	ID     string                 `json:"id" msgpack:"id"`
	Fields map[string]interface{} `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

type Operation string

const (
	OperationAdd       Operation = "add"
	OperationUpdate    Operation = "update"
	OperationDelete    Operation = "delete"
	OperationDeleteAll Operation = "delete_all"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OperationAdd, OperationUpdate, OperationDelete, OperationDeleteAll:
		return Operation(s), nil
	case "", "upsert":
		return OperationUpdate, nil
	default:
		return "", errors.Errorf("unknown operation %q", s)
	}
}

// Work is one mutation of a batch.
type Work struct {
	Op       Operation
	Document Document
}

type Batch []Work

func (b Batch) Validate() error {
	for i, w := range b {
		switch w.Op {
		case OperationAdd, OperationUpdate, OperationDelete:
			if w.Document.ID == "" {
				return fmt.Errorf("work %d (%s): document id must not be empty", i, w.Op)
			}
		case OperationDeleteAll:
		default:
			return fmt.Errorf("work %d: unknown operation %q", i, w.Op)
		}
	}
	return nil
}

// IDs returns the ids of all documents in the batch which carry one.
func (b Batch) IDs() []string {
	ids := make([]string, 0, len(b))
	for _, w := range b {
		if w.Document.ID != "" {
			ids = append(ids, w.Document.ID)
		}
	}
	return ids
}
