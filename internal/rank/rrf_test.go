package rank

import (
	"math"
	"testing"

	"github.com/anyrag-go/ragcore/internal/storage"
)

func TestRRFSingleElementAcrossNLists(t *testing.T) {
	r := storage.SearchResult{Link: "http://x", Title: "X"}
	n := 3
	lists := make([][]storage.SearchResult, n)
	for i := range lists {
		lists[i] = []storage.SearchResult{r}
	}

	out := ReciprocalRankFusion(DefaultK, lists...)
	if len(out) != 1 {
		t.Fatalf("expected 1 fused result, got %d", len(out))
	}
	want := float64(n) / float64(DefaultK+1)
	if math.Abs(out[0].Score-want) > 1e-9 {
		t.Fatalf("expected score %f, got %f", want, out[0].Score)
	}
}

func TestRRFOrderingAndTieBreak(t *testing.T) {
	listA := []storage.SearchResult{{Link: "a"}, {Link: "b"}}
	listB := []storage.SearchResult{{Link: "b"}, {Link: "c"}}

	out := ReciprocalRankFusion(DefaultK, listA, listB)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct links, got %d", len(out))
	}
	if out[0].Link != "b" {
		t.Fatalf("expected 'b' (appears in both lists) to rank first, got %s", out[0].Link)
	}

	// x and y both score 1/(k+1); the tie keeps first-appearance order.
	tied := ReciprocalRankFusion(DefaultK, []storage.SearchResult{{Link: "x"}}, []storage.SearchResult{{Link: "y"}})
	if len(tied) != 2 || tied[0].Link != "x" || tied[1].Link != "y" {
		t.Fatalf("expected tied links in first-appearance order [x y], got %+v", tied)
	}
}
