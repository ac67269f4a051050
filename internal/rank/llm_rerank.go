package rank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// Mode is the closed set of re-rank strategies, per the "tagged variants"
// design note (RawHtml/Jina-style enumeration applied to re-rank modes).
type Mode int

const (
	ModeRRF Mode = iota
	ModeLLMReRank
)

const reRankSystemPrompt = "You are a relevance re-ranking assistant. Given a numbered list of candidate documents, return a JSON array of their `link` values in order from most to least relevant to the query. Return ONLY the JSON array."

// LLMReRank sends candidates as a numbered (link, title, description
// snippet) context and expects back a JSON array of link strings in
// preferred order. Candidates are reordered to match; unknown links in the
// response are dropped; any input candidate omitted from the response is
// appended in its original order.
func LLMReRank(ctx context.Context, gen ai.Generator, query string, candidates []storage.SearchResult) ([]storage.SearchResult, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	var b strings.Builder
	for i, c := range candidates {
		snippet := c.Description
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		fmt.Fprintf(&b, "%d. link=%q title=%q description=%q\n", i+1, c.Link, c.Title, snippet)
	}

	userPrompt := fmt.Sprintf("Query: %s\n\nCandidates:\n%s", query, b.String())

	raw, err := gen.Generate(ctx, reRankSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: llm re-rank: %v", ragerr.ErrLLM, err)
	}

	cleaned := stripFences(raw)
	var order []string
	if err := json.Unmarshal([]byte(cleaned), &order); err != nil {
		logging.Warn("rank: llm re-rank response was not valid JSON, falling back to original order", "raw", raw)
		return candidates, nil
	}

	byLink := make(map[string]storage.SearchResult, len(candidates))
	for _, c := range candidates {
		byLink[c.Link] = c
	}

	seen := make(map[string]bool, len(order))
	out := make([]storage.SearchResult, 0, len(candidates))
	for _, link := range order {
		c, ok := byLink[link]
		if !ok {
			continue
		}
		out = append(out, c)
		seen[link] = true
	}
	for _, c := range candidates {
		if !seen[c.Link] {
			out = append(out, c)
		}
	}
	return out, nil
}

// stripFences removes a surrounding ```json ... ``` or ``` ... ``` fence if
// present, per the "LLM output robustness" design note applied at every
// JSON-parsing call site.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
