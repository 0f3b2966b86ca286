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
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/weaviate/segmentwriter/entities/failure"
	"github.com/weaviate/segmentwriter/usecases/config"
)

type bulkAction struct {
	Action string
	Index  string
	ID     string
	Source map[string]interface{}
}

// fakeCluster answers the few endpoints the link uses.
type fakeCluster struct {
	t       *testing.T
	server  *httptest.Server
	version string

	// number of info requests failing with 500 before the first success
	failInfo     atomic.Int32
	infoRequests atomic.Int32

	sync.Mutex
	indexes   map[string]bool
	created   map[string]map[string]interface{}
	bulk      []bulkAction
	purged    []string
	rejectIDs map[string]bool
}

func newFakeCluster(t *testing.T, version string) *fakeCluster {
	c := &fakeCluster{
		t:         t,
		version:   version,
		indexes:   map[string]bool{},
		created:   map[string]map[string]interface{}{},
		rejectIDs: map[string]bool{},
	}
	c.server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.server.Close)
	return c
}

func (c *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "":
		c.infoRequests.Add(1)
		if c.failInfo.Load() > 0 {
			c.failInfo.Add(-1)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"starting"}`)
			return
		}
		fmt.Fprintf(w, `{"name":"node-1","version":{"number":%q,"build_flavor":"default"},"tagline":"You Know, for Search"}`,
			c.version)
	case r.Method == http.MethodHead:
		c.Lock()
		exists := c.indexes[path]
		c.Unlock()
		if !exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.Lock()
		c.indexes[path] = true
		c.created[path] = body
		if aliases, ok := body["aliases"].(map[string]interface{}); ok {
			for alias := range aliases {
				c.indexes[alias] = true
			}
		}
		c.Unlock()
		fmt.Fprintf(w, `{"acknowledged":true,"index":%q}`, path)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "_delete_by_query"):
		c.Lock()
		c.purged = append(c.purged, strings.TrimSuffix(path, "/_delete_by_query"))
		c.Unlock()
		fmt.Fprint(w, `{"deleted":3,"failures":[]}`)
	case r.Method == http.MethodPost && path == "_bulk":
		c.serveBulk(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"not found"}`)
	}
}

func (c *fakeCluster) serveBulk(w http.ResponseWriter, r *http.Request) {
	var actions []bulkAction
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var meta map[string]struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		}
		if err := json.Unmarshal(line, &meta); err != nil {
			c.t.Errorf("invalid bulk line %q: %v", line, err)
			return
		}
		for action, m := range meta {
			a := bulkAction{Action: action, Index: m.Index, ID: m.ID}
			if action != "delete" && scanner.Scan() {
				_ = json.Unmarshal(scanner.Bytes(), &a.Source)
			}
			actions = append(actions, a)
		}
	}

	c.Lock()
	c.bulk = append(c.bulk, actions...)
	items := make([]map[string]interface{}, len(actions))
	failed := false
	for i, a := range actions {
		item := map[string]interface{}{"_index": a.Index, "_id": a.ID, "status": 200}
		if c.rejectIDs[a.ID] {
			failed = true
			item["status"] = 400
			item["error"] = map[string]interface{}{
				"type":   "mapper_parsing_exception",
				"reason": "failed to parse field [fields]",
			}
		}
		items[i] = map[string]interface{}{a.Action: item}
	}
	c.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"took":   1,
		"errors": failed,
		"items":  items,
	})
}

func (c *fakeCluster) actions() []bulkAction {
	c.Lock()
	defer c.Unlock()
	return append([]bulkAction(nil), c.bulk...)
}

func (c *fakeCluster) config() config.Elasticsearch {
	return config.Elasticsearch{
		Hosts:               []string{c.server.URL},
		VersionCheckEnabled: true,
		LayoutStrategy:      config.LayoutSimple,
		FlushInterval:       time.Hour,
		FlushBytes:          5 << 20,
		Workers:             1,
		StartupMaxRetries:   3,
	}
}

type recordingHandler struct {
	sync.Mutex
	events []failure.Context
}

func (h *recordingHandler) Handle(ctx failure.Context) {
	h.Lock()
	defer h.Unlock()
	h.events = append(h.events, ctx)
}

func (h *recordingHandler) recorded() []failure.Context {
	h.Lock()
	defer h.Unlock()
	return append([]failure.Context(nil), h.events...)
}

func newTestLink(cfg config.Elasticsearch) (*Link, *recordingHandler, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	handler := &recordingHandler{}

	link := NewLink(cfg, handler, nil, logger)
	link.probeInterval = time.Millisecond
	return link, handler, hook
}
