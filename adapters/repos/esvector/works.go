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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/pkg/errors"

	"github.com/weaviate/segmentwriter/entities/document"
)

// WorkFactory turns document works into bulk items and runs the index
// level requests which cannot be expressed as bulk items.
type WorkFactory struct {
	client  *elasticsearch.Client
	dialect *Dialect
	names   *IndexNamesRegistry
}

func newWorkFactory(client *elasticsearch.Client, dialect *Dialect, names *IndexNamesRegistry) *WorkFactory {
	return &WorkFactory{client: client, dialect: dialect, names: names}
}

type source struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// BulkItem builds the item for a single add, update or delete work. The
// item always targets the write name of the index.
func (f *WorkFactory) BulkItem(indexName string, work document.Work) (esutil.BulkIndexerItem, error) {
	names, err := f.names.mustLookup(indexName)
	if err != nil {
		return esutil.BulkIndexerItem{}, err
	}

	item := esutil.BulkIndexerItem{
		Index:      names.Write,
		DocumentID: work.Document.ID,
	}

	switch work.Op {
	case document.OperationAdd:
		item.Action = "create"
	case document.OperationUpdate:
		item.Action = "index"
	case document.OperationDelete:
		item.Action = "delete"
		return item, nil
	default:
		return esutil.BulkIndexerItem{}, errors.Errorf("operation %q has no bulk item", work.Op)
	}

	body, err := json.Marshal(source{ID: work.Document.ID, Fields: work.Document.Fields})
	if err != nil {
		return esutil.BulkIndexerItem{}, errors.Wrapf(err, "encode document %q", work.Document.ID)
	}
	item.Body = bytes.NewReader(body)
	return item, nil
}

// Purge deletes all documents of the index.
func (f *WorkFactory) Purge(ctx context.Context, indexName string) error {
	names, err := f.names.mustLookup(indexName)
	if err != nil {
		return err
	}

	body, err := encode(f.dialect.PurgeQuery())
	if err != nil {
		return err
	}

	res, err := f.client.DeleteByQuery([]string{names.Write}, body,
		f.client.DeleteByQuery.WithContext(ctx),
		f.client.DeleteByQuery.WithConflicts("proceed"),
		f.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return errors.Wrapf(err, "purge index %q", indexName)
	}
	defer res.Body.Close()

	return errorResToErr(res.StatusCode, res.Status(), res.Body, "purge index %q", indexName)
}

// CreateIndexIfMissing creates the primary index with its aliases unless the
// write target already exists. It reports whether the index was created.
func (f *WorkFactory) CreateIndexIfMissing(ctx context.Context, indexName string) (bool, error) {
	names, err := f.names.mustLookup(indexName)
	if err != nil {
		return false, err
	}

	exists, err := f.client.Indices.Exists([]string{names.Write},
		f.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, errors.Wrapf(err, "check index %q", indexName)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, errors.Errorf("check index %q: unexpected status %s", indexName, exists.Status())
	}

	body, err := encode(f.dialect.CreateIndexBody(names))
	if err != nil {
		return false, err
	}

	res, err := f.client.Indices.Create(names.Primary,
		f.client.Indices.Create.WithContext(ctx),
		f.client.Indices.Create.WithBody(body),
	)
	if err != nil {
		return false, errors.Wrapf(err, "create index %q", indexName)
	}
	defer res.Body.Close()

	if err := errorResToErr(res.StatusCode, res.Status(), res.Body, "create index %q", indexName); err != nil {
		return false, err
	}
	return true, nil
}

func encode(v interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode request body")
	}
	return &buf, nil
}

func errorResToErr(status int, statusText string, body io.Reader, format string, args ...interface{}) error {
	if status < 300 {
		return nil
	}

	msg, _ := io.ReadAll(body)
	return errors.Wrapf(errors.Errorf("request failed [%s]: %s", statusText, bytes.TrimSpace(msg)),
		format, args...)
}
