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

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/weaviate/segmentwriter/entities/document"
)

const maxLineSize = 16 << 20

type inputLine struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
	Op     string                 `json:"op"`
}

func parseLine(raw []byte) (document.Work, error) {
	var line inputLine
	if err := json.Unmarshal(raw, &line); err != nil {
		return document.Work{}, err
	}

	op, err := document.ParseOperation(line.Op)
	if err != nil {
		return document.Work{}, err
	}

	if line.ID == "" {
		switch op {
		case document.OperationAdd, document.OperationUpdate:
			line.ID = uuid.NewString()
		case document.OperationDelete:
			return document.Work{}, errors.New("delete without an id")
		}
	}

	return document.Work{
		Op:       op,
		Document: document.Document{ID: line.ID, Fields: line.Fields},
	}, nil
}

type loadStats struct {
	Lines   int
	Works   int
	Batches int
}

// load reads JSON lines from r and hands them to apply in batches of at
// most batchSize works. Empty lines are skipped.
func load(ctx context.Context, r io.Reader, batchSize int,
	apply func(context.Context, document.Batch) error,
) (loadStats, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	var stats loadStats
	batch := make(document.Batch, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := apply(ctx, batch); err != nil {
			return err
		}
		stats.Batches++
		stats.Works += len(batch)
		batch = make(document.Batch, 0, batchSize)
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		stats.Lines++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		work, err := parseLine(raw)
		if err != nil {
			return stats, errors.Wrapf(err, "line %d", stats.Lines)
		}
		batch = append(batch, work)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, "read input")
	}
	return stats, flush()
}
