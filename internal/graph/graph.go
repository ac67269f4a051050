// Package graph implements the optional in-memory knowledge graph: an
// adjacency structure over entity values, built opportunistically from
// ENTITY-type metadata facets during ingestion. This is additive — no
// search or ingestion contract requires it to be present, and a Graph
// left unwired behaves as if it were never consulted.
//
// Grounded on original_source's graph/mod.rs (the get_or_create_vertex +
// add_fact shape), generalized from a RocksDB/indradb-backed durable store
// to a process-local reader-writer-locked map, since nothing in this
// module's spec requires persistence across restarts for the graph.
package graph

import (
	"sort"
	"sync"

	"github.com/anyrag-go/ragcore/internal/metadata"
)

// Edge is one subject-predicate-object fact. Predicate is the document the
// two entities were co-extracted from, mirroring the teacher's "facts tied
// to a source" convention rather than a free-form relation vocabulary —
// this graph only needs to answer "what else co-occurs with X".
type Edge struct {
	Object     string
	DocumentID string
}

// Graph is a reader-writer-locked adjacency map keyed on entity value.
// Safe for concurrent use by multiple ingestion goroutines and readers.
type Graph struct {
	mu    sync.RWMutex
	edges map[string][]Edge
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{edges: make(map[string][]Edge)}
}

// AddFromFacets records a co-occurrence edge between every pair of ENTITY
// facets extracted from the same document, so each entity's neighbor list
// reflects everything it was mentioned alongside. Non-ENTITY facets are
// ignored.
func (g *Graph) AddFromFacets(documentID string, facets []metadata.Facet) {
	var entities []string
	for _, f := range facets {
		if f.Type == "ENTITY" && f.Value != "" {
			entities = append(entities, f.Value)
		}
	}
	if len(entities) < 2 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i, subject := range entities {
		for j, object := range entities {
			if i == j {
				continue
			}
			g.edges[subject] = append(g.edges[subject], Edge{Object: object, DocumentID: documentID})
		}
	}
}

// Neighbors returns the distinct entity values co-occurring with entity,
// sorted for deterministic output.
func (g *Graph) Neighbors(entity string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range g.edges[entity] {
		seen[e.Object] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
