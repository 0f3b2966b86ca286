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
	"sort"
	"sync"

	"github.com/pkg/errors"

	enterrors "github.com/weaviate/segmentwriter/entities/errors"
	"github.com/weaviate/segmentwriter/usecases/config"
)

// IndexNames maps a logical index to the names used on the cluster.
type IndexNames struct {
	Name    string
	Write   string
	Read    string
	Primary string

	WriteIsAlias bool
	ReadIsAlias  bool
}

// NamesFor applies a layout strategy to a logical index name.
func NamesFor(strategy, name string) (IndexNames, error) {
	switch strategy {
	case config.LayoutSimple:
		return IndexNames{
			Name:         name,
			Write:        name + "-write",
			Read:         name + "-read",
			Primary:      name + "-000001",
			WriteIsAlias: true,
			ReadIsAlias:  true,
		}, nil
	case config.LayoutNoAlias:
		return IndexNames{Name: name, Write: name, Read: name, Primary: name}, nil
	default:
		return IndexNames{}, enterrors.NewErrConfiguration(config.KeyElasticsearchLayoutStrategy,
			strategy, "unknown layout strategy")
	}
}

func (n IndexNames) UsesAliases() bool {
	return n.WriteIsAlias || n.ReadIsAlias
}

// targets returns every distinct name n occupies on the cluster.
func (n IndexNames) targets() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, name := range []string{n.Name, n.Write, n.Read, n.Primary} {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (n IndexNames) validate() error {
	if n.Name == "" || n.Write == "" || n.Read == "" {
		return enterrors.NewErrConfigurationf("index names of %q are incomplete: write %q, read %q",
			n.Name, n.Write, n.Read)
	}
	return nil
}

// IndexNamesRegistry guarantees that no two registered indexes share a name,
// whether logical name, write target, read target or primary index.
type IndexNamesRegistry struct {
	sync.RWMutex
	byIndex map[string]IndexNames
	owners  map[string]string
}

func NewIndexNamesRegistry() *IndexNamesRegistry {
	return &IndexNamesRegistry{
		byIndex: map[string]IndexNames{},
		owners:  map[string]string{},
	}
}

// Register fails with an ErrIndexNameConflict naming both indexes if any
// name of n is already taken by another index. Registering the same index
// again replaces its names.
func (r *IndexNamesRegistry) Register(n IndexNames) error {
	if err := n.validate(); err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	for _, target := range n.targets() {
		if owner, ok := r.owners[target]; ok && owner != n.Name {
			return enterrors.NewErrIndexNameConflict(target, owner, n.Name)
		}
	}

	if previous, ok := r.byIndex[n.Name]; ok {
		for _, target := range previous.targets() {
			delete(r.owners, target)
		}
	}
	for _, target := range n.targets() {
		r.owners[target] = n.Name
	}
	r.byIndex[n.Name] = n
	return nil
}

func (r *IndexNamesRegistry) Lookup(name string) (IndexNames, bool) {
	r.RLock()
	defer r.RUnlock()

	n, ok := r.byIndex[name]
	return n, ok
}

func (r *IndexNamesRegistry) mustLookup(name string) (IndexNames, error) {
	n, ok := r.Lookup(name)
	if !ok {
		return IndexNames{}, errors.Errorf("index %q is not registered", name)
	}
	return n, nil
}

// Indexes returns the registered logical names, sorted.
func (r *IndexNamesRegistry) Indexes() []string {
	r.RLock()
	defer r.RUnlock()

	out := make([]string, 0, len(r.byIndex))
	for name := range r.byIndex {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
