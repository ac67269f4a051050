package graph

import (
	"reflect"
	"testing"

	"github.com/anyrag-go/ragcore/internal/metadata"
)

func TestAddFromFacetsLinksCoOccurringEntities(t *testing.T) {
	g := New()
	facets := []metadata.Facet{
		{Type: "ENTITY", Subtype: "PERSON", Value: "Ada Lovelace"},
		{Type: "ENTITY", Subtype: "PRODUCT", Value: "Analytical Engine"},
		{Type: "KEYPHRASE", Subtype: "CONCEPT", Value: "computing"},
	}

	g.AddFromFacets("doc-1", facets)

	if got := g.Neighbors("Ada Lovelace"); !reflect.DeepEqual(got, []string{"Analytical Engine"}) {
		t.Fatalf("unexpected neighbors: %v", got)
	}
	if got := g.Neighbors("Analytical Engine"); !reflect.DeepEqual(got, []string{"Ada Lovelace"}) {
		t.Fatalf("unexpected neighbors: %v", got)
	}
}

func TestAddFromFacetsIgnoresSingleEntity(t *testing.T) {
	g := New()
	g.AddFromFacets("doc-1", []metadata.Facet{{Type: "ENTITY", Value: "solo"}})

	if got := g.Neighbors("solo"); len(got) != 0 {
		t.Fatalf("expected no neighbors, got %v", got)
	}
}

func TestNeighborsReturnsEmptyForUnknownEntity(t *testing.T) {
	g := New()
	if got := g.Neighbors("nobody"); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
