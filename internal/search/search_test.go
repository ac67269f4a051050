package search

import (
	"context"
	"strings"
	"testing"

	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeBackend struct {
	metadata   []storage.SearchResult
	keyword    []storage.SearchResult
	vector     []storage.SearchResult
	properties map[string]string
	failVector bool
}

func (f *fakeBackend) KeywordSearch(ctx context.Context, query string, limit int, owner *string) ([]storage.SearchResult, error) {
	return f.keyword, nil
}

func (f *fakeBackend) VectorSearch(ctx context.Context, vector []float32, limit int, owner *string) ([]storage.SearchResult, error) {
	if f.failVector {
		return nil, context.DeadlineExceeded
	}
	return f.vector, nil
}

func (f *fakeBackend) MetadataSearch(ctx context.Context, entities, keyphrases []string, owner *string, limit int) ([]storage.SearchResult, error) {
	return f.metadata, nil
}

func (f *fakeBackend) GetStringPropertiesForDocuments(ctx context.Context, sourceURLs []string, property string, owner *string) (map[string]string, error) {
	return f.properties, nil
}

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

type fakeEmbedder struct {
	vectors [][]float32
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f.vectors, nil
}

func TestAnalyzeQueryFallsBackOnInvalidJSON(t *testing.T) {
	gen := &fakeGenerator{response: "not json at all"}
	got := AnalyzeQuery(context.Background(), gen, "find the widget manual", DefaultPrompts())
	if len(got.Keyphrases) != 1 || got.Keyphrases[0] != "find the widget manual" {
		t.Fatalf("expected raw-query fallback, got %+v", got)
	}
	if got.Entities != nil {
		t.Fatalf("expected nil entities on fallback, got %v", got.Entities)
	}
}

func TestAnalyzeQueryParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"entities\":[\"WidgetPro\"],\"keyphrases\":[\"manual\",\"setup\"]}\n```"}
	got := AnalyzeQuery(context.Background(), gen, "ignored", DefaultPrompts())
	if len(got.Entities) != 1 || got.Entities[0] != "WidgetPro" {
		t.Fatalf("expected parsed entities, got %+v", got)
	}
	if len(got.Keyphrases) != 2 {
		t.Fatalf("expected 2 keyphrases, got %+v", got.Keyphrases)
	}
}

func TestHybridSearchFusesChannelsAndExpandsChunks(t *testing.T) {
	content := "sections:\n- title: Setup\n  faqs:\n  - question: How do I start?\n    answer: Plug it in.\n"
	parent := storage.SearchResult{Link: "https://example.com/doc", Title: "Doc", Description: content}

	backend := &fakeBackend{
		metadata: []storage.SearchResult{parent},
		keyword:  []storage.SearchResult{parent},
	}
	gen := &fakeGenerator{response: `{"entities":[],"keyphrases":["setup"]}`}
	embed := &fakeEmbedder{vectors: [][]float32{{0.1, 0.2}}}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText:        "how do I set it up",
		Limit:            5,
		Prompts:          DefaultPrompts(),
		UseKeywordSearch: true,
		UseVectorSearch:  true,
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 expanded chunk, got %d: %+v", len(out), out)
	}
	if out[0].Title != "Setup" {
		t.Fatalf("expected expanded section title 'Setup', got %q", out[0].Title)
	}
	if out[0].Link != "https://example.com/doc#Setup" {
		t.Fatalf("unexpected chunk link: %s", out[0].Link)
	}
}

func TestHybridSearchSurvivesVectorChannelFailure(t *testing.T) {
	parent := storage.SearchResult{Link: "https://example.com/doc", Title: "Doc", Description: "plain text, not canon yaml"}
	backend := &fakeBackend{metadata: []storage.SearchResult{parent}, failVector: true}
	gen := &fakeGenerator{response: `{"entities":[],"keyphrases":["x"]}`}
	embed := &fakeEmbedder{vectors: [][]float32{{0.1}}}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText:       "x",
		Limit:           5,
		Prompts:         DefaultPrompts(),
		UseVectorSearch: true,
	})

	if len(out) != 1 {
		t.Fatalf("expected metadata channel result to survive vector failure, got %d", len(out))
	}
}

func TestHybridSearchTemporalRerankTruncatesToLatest(t *testing.T) {
	older := storage.SearchResult{Link: "https://example.com/old", Title: "Old", Description: "old content"}
	newer := storage.SearchResult{Link: "https://example.com/new", Title: "New", Description: "new content"}

	backend := &fakeBackend{
		metadata: []storage.SearchResult{older, newer},
		properties: map[string]string{
			"https://example.com/old": "2020-01-01",
			"https://example.com/new": "2024-06-15",
		},
	}
	gen := &fakeGenerator{response: `{"entities":[],"keyphrases":["latest release"]}`}
	embed := &fakeEmbedder{}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText: "what is the latest release",
		Limit:     5,
		Prompts:   DefaultPrompts(),
		TemporalRankingConfig: &TemporalRankingConfig{
			Keywords:     []string{"latest"},
			PropertyName: "published_date",
		},
	})

	if len(out) != 1 {
		t.Fatalf("expected temporal re-rank to truncate to 1 result, got %d", len(out))
	}
	if out[0].Link != "https://example.com/new" {
		t.Fatalf("expected the newer document to win, got %s", out[0].Link)
	}
}

func TestHybridSearchHonorsRRFConstantOverride(t *testing.T) {
	result := storage.SearchResult{Link: "https://example.com/a", Title: "A", Description: "content"}
	backend := &fakeBackend{metadata: []storage.SearchResult{result}}
	gen := &fakeGenerator{response: `{"entities":[],"keyphrases":["content"]}`}
	embed := &fakeEmbedder{}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText:   "content",
		Limit:       5,
		Prompts:     DefaultPrompts(),
		RRFConstant: 1,
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	want := 1.0 / float64(1+1)
	if out[0].Score != want {
		t.Fatalf("expected score %f with k=1, got %f", want, out[0].Score)
	}
}

type fakeGraph struct {
	neighbors map[string][]string
}

func (f *fakeGraph) Neighbors(entity string) []string {
	return f.neighbors[entity]
}

func TestHybridSearchAugmentsWithRelatedEntitiesWhenGraphSet(t *testing.T) {
	result := storage.SearchResult{Link: "https://example.com/a", Title: "A", Description: "content about Ada Lovelace"}
	backend := &fakeBackend{metadata: []storage.SearchResult{result}}
	gen := &fakeGenerator{response: `{"entities":["Ada Lovelace"],"keyphrases":["computing"]}`}
	embed := &fakeEmbedder{}
	graph := &fakeGraph{neighbors: map[string][]string{"Ada Lovelace": {"Analytical Engine"}}}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText: "Ada Lovelace",
		Limit:     5,
		Prompts:   DefaultPrompts(),
		Graph:     graph,
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if !strings.Contains(out[0].Description, "Related: Analytical Engine") {
		t.Fatalf("expected related-entity suffix, got %q", out[0].Description)
	}
}

func TestHybridSearchOmitsRelatedSuffixWithoutGraph(t *testing.T) {
	result := storage.SearchResult{Link: "https://example.com/a", Title: "A", Description: "content"}
	backend := &fakeBackend{metadata: []storage.SearchResult{result}}
	gen := &fakeGenerator{response: `{"entities":[],"keyphrases":["content"]}`}
	embed := &fakeEmbedder{}

	out := HybridSearch(context.Background(), backend, embed, gen, Options{
		QueryText: "content",
		Limit:     5,
		Prompts:   DefaultPrompts(),
	})

	if len(out) != 1 || strings.Contains(out[0].Description, "Related:") {
		t.Fatalf("expected no related-entity suffix, got %+v", out)
	}
}
