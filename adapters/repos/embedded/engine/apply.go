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

package engine

import (
	"github.com/pkg/errors"

	"github.com/weaviate/segmentwriter/entities/document"
)

// Apply sends every work of the batch to the writer, in order.
func Apply(w Writer, batch document.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	for i, work := range batch {
		var err error
		switch work.Op {
		case document.OperationAdd:
			err = w.AddDocuments(work.Document)
		case document.OperationUpdate:
			err = w.UpdateDocuments(work.Document)
		case document.OperationDelete:
			err = w.DeleteDocuments(work.Document.ID)
		case document.OperationDeleteAll:
			err = w.DeleteAll()
		}
		if err != nil {
			return errors.Wrapf(err, "apply work %d (%s)", i, work.Op)
		}
	}
	return nil
}
