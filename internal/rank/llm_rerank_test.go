package rank

import (
	"context"
	"testing"

	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

func TestLLMReRankReordersToMatchResponse(t *testing.T) {
	candidates := []storage.SearchResult{{Link: "a"}, {Link: "b"}, {Link: "c"}}
	gen := &fakeGenerator{response: `["c", "a", "b"]`}

	out, err := LLMReRank(context.Background(), gen, "query", candidates)
	if err != nil {
		t.Fatalf("LLMReRank returned error: %v", err)
	}
	got := []string{out[0].Link, out[1].Link, out[2].Link}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestLLMReRankAppendsOmittedCandidatesInOriginalOrder(t *testing.T) {
	candidates := []storage.SearchResult{{Link: "a"}, {Link: "b"}, {Link: "c"}}
	gen := &fakeGenerator{response: `["b"]`}

	out, err := LLMReRank(context.Background(), gen, "query", candidates)
	if err != nil {
		t.Fatalf("LLMReRank returned error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected all 3 candidates preserved, got %d", len(out))
	}
	if out[0].Link != "b" || out[1].Link != "a" || out[2].Link != "c" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestLLMReRankFallsBackToOriginalOrderOnInvalidJSON(t *testing.T) {
	candidates := []storage.SearchResult{{Link: "a"}, {Link: "b"}}
	gen := &fakeGenerator{response: "not json"}

	out, err := LLMReRank(context.Background(), gen, "query", candidates)
	if err != nil {
		t.Fatalf("LLMReRank returned error: %v", err)
	}
	if out[0].Link != "a" || out[1].Link != "b" {
		t.Fatalf("expected original order preserved on parse failure, got %+v", out)
	}
}

func TestLLMReRankReturnsEmptyForNoCandidates(t *testing.T) {
	gen := &fakeGenerator{response: `[]`}
	out, err := LLMReRank(context.Background(), gen, "query", nil)
	if err != nil {
		t.Fatalf("LLMReRank returned error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
}
