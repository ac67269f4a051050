// Package search implements the Multi-stage Hybrid Search Engine: query
// analysis, parallel-capable retrieval across three indexes, rank fusion,
// chunk expansion, and optional temporal re-rank. Grounded on
// original_source/crates/lib/src/search.rs, which is the definitive
// reference for this algorithm's exact step order and formatting.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/canon"
	"github.com/anyrag-go/ragcore/internal/ids"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/rank"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// AnalyzedQuery is the LLM's structured reading of a natural-language
// query. On parse failure it falls back to
// `{entities: [], keyphrases: [query_text]}`: no entities, and the raw query
// text as the only keyphrase.
type AnalyzedQuery struct {
	Entities   []string `json:"entities"`
	Keyphrases []string `json:"keyphrases"`
}

// Prompts holds the query-analysis prompt templates. Literal "{prompt}"
// substitution only, per the "prompt templating" design note.
type Prompts struct {
	AnalysisSystemPrompt       string
	AnalysisUserPromptTemplate string
}

const defaultAnalysisSystemPrompt = "You analyze a user's search query and extract structured search hints. Respond with a JSON object {\"entities\": [string], \"keyphrases\": [string]}. Respond with ONLY the JSON object."

const defaultAnalysisUserPromptTemplate = "Query: {prompt}"

// DefaultPrompts returns the built-in analysis prompt pair.
func DefaultPrompts() Prompts {
	return Prompts{
		AnalysisSystemPrompt:       defaultAnalysisSystemPrompt,
		AnalysisUserPromptTemplate: defaultAnalysisUserPromptTemplate,
	}
}

// TemporalRankingConfig enables the optional temporal re-rank step.
type TemporalRankingConfig struct {
	Keywords     []string
	PropertyName string
}

// EntityGraph is the narrow read surface the optional knowledge-graph
// augmentation needs. internal/graph.Graph satisfies this.
type EntityGraph interface {
	Neighbors(entity string) []string
}

// Options bundles a hybrid_search call's parameters.
type Options struct {
	QueryText             string
	Owner                 *string
	Limit                 int
	Prompts               Prompts
	UseKeywordSearch      bool
	UseVectorSearch       bool
	EmbeddingModel        string
	TemporalRankingConfig *TemporalRankingConfig

	// RRFConstant overrides rank.DefaultK when positive; "implementations
	// may expose it" per spec §4.F.
	RRFConstant int

	// Graph optionally augments results with related-entity context from
	// the supplemental knowledge graph (§5, SPEC_FULL.md supplemented
	// features). Nil disables it and leaves results unchanged; when set,
	// result descriptions gain a related-entities suffix.
	Graph EntityGraph
}

// AnalyzeQuery calls the LLM with the analysis prompt and returns the
// structured query reading, falling back to
// {entities:[], keyphrases:[queryText]} and a warning on any parse
// failure — never a hard error, per §4.E step 1.
func AnalyzeQuery(ctx context.Context, gen ai.Generator, queryText string, prompts Prompts) AnalyzedQuery {
	userPrompt := strings.ReplaceAll(prompts.AnalysisUserPromptTemplate, "{prompt}", queryText)

	raw, err := gen.Generate(ctx, prompts.AnalysisSystemPrompt, userPrompt)
	if err != nil {
		logging.Warn("search: query analysis generate failed, falling back to raw query", "error", err)
		return AnalyzedQuery{Keyphrases: []string{queryText}}
	}

	cleaned := stripFences(raw)
	var analyzed AnalyzedQuery
	if err := json.Unmarshal([]byte(cleaned), &analyzed); err != nil {
		logging.Warn("search: query analysis response was not valid JSON, falling back to raw query", "raw", raw)
		return AnalyzedQuery{Keyphrases: []string{queryText}}
	}
	return analyzed
}

// HybridSearch runs the full algorithm: analyze -> gather three channels
// sequentially with isolated failure -> RRF -> chunk expansion -> optional
// temporal re-rank -> truncate to Limit.
func HybridSearch(ctx context.Context, backend storage.HybridBackend, embedder ai.Embedder, gen ai.Generator, opts Options) []storage.SearchResult {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	channelLimit := limit * 2

	analyzed := AnalyzeQuery(ctx, gen, opts.QueryText, opts.Prompts)

	// Metadata channel: union of analyzed keyphrases and whitespace-split
	// raw query tokens, deduplicated.
	keyphrasesMeta := unionDedup(analyzed.Keyphrases, strings.Fields(opts.QueryText))
	metadataCandidates, err := backend.MetadataSearch(ctx, analyzed.Entities, keyphrasesMeta, opts.Owner, channelLimit)
	if err != nil {
		logging.Warn("search: metadata channel failed", "error", err)
		metadataCandidates = nil
	}

	var keywordCandidates []storage.SearchResult
	if opts.UseKeywordSearch && strings.TrimSpace(opts.QueryText) != "" {
		keywordCandidates, err = backend.KeywordSearch(ctx, opts.QueryText, channelLimit, opts.Owner)
		if err != nil {
			logging.Warn("search: keyword channel failed", "error", err)
			keywordCandidates = nil
		}
	}

	var vectorCandidates []storage.SearchResult
	if opts.UseVectorSearch {
		vectors, embedErr := embedder.EmbedBatch(ctx, []string{opts.QueryText})
		if embedErr != nil || len(vectors) == 0 {
			logging.Warn("search: vector channel embedding failed", "error", embedErr)
		} else {
			vectorCandidates, err = backend.VectorSearch(ctx, vectors[0], channelLimit, opts.Owner)
			if err != nil {
				logging.Warn("search: vector channel failed", "error", err)
				vectorCandidates = nil
			}
		}
	}

	// Fusion input order matches original_source exactly: metadata, vector,
	// keyword.
	fused := rank.ReciprocalRankFusion(opts.RRFConstant, metadataCandidates, vectorCandidates, keywordCandidates)

	expanded := expandChunks(fused)

	if opts.TemporalRankingConfig != nil && len(expanded) > 0 && triggersTemporal(analyzed.Keyphrases, opts.TemporalRankingConfig.Keywords) {
		expanded = temporallyRank(ctx, backend, expanded, *opts.TemporalRankingConfig, opts.Owner)
	}

	if len(expanded) > limit {
		expanded = expanded[:limit]
	}
	if len(expanded) == 0 {
		logging.Warn("search: hybrid search returned no results", "query", opts.QueryText)
	}

	if opts.Graph != nil {
		expanded = augmentWithRelatedEntities(expanded, opts.Graph, analyzed.Entities)
	}
	return expanded
}

// augmentWithRelatedEntities appends a "Related: ..." line to each
// result's description for every neighbor of a queried entity, so a
// downstream LLM consuming these results as context sees one hop of
// graph structure without an extra round trip. Purely additive: omitting
// Options.Graph produces identical results.
func augmentWithRelatedEntities(results []storage.SearchResult, g EntityGraph, entities []string) []storage.SearchResult {
	seen := make(map[string]struct{})
	for _, entity := range entities {
		for _, neighbor := range g.Neighbors(entity) {
			seen[neighbor] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return results
	}

	related := make([]string, 0, len(seen))
	for v := range seen {
		related = append(related, v)
	}
	sort.Strings(related)
	suffix := "\n\nRelated: " + strings.Join(related, ", ")

	for i := range results {
		results[i].Description += suffix
	}
	return results
}

// expandChunks parses each fused parent's content as canonical YAML and
// emits one SearchResult per Section; on parse failure the parent is
// emitted unchanged as a fallback chunk.
func expandChunks(parents []storage.SearchResult) []storage.SearchResult {
	var out []storage.SearchResult
	for _, parent := range parents {
		content, err := canon.Parse(parent.Description)
		if err != nil || len(content.Sections) == 0 {
			out = append(out, parent)
			continue
		}
		for _, section := range content.Sections {
			out = append(out, storage.SearchResult{
				Title:       section.Title,
				Link:        ids.SectionLink(parent.Link, section.Title),
				Description: canon.ExpandSection(section),
				Score:       parent.Score,
			})
		}
	}
	return out
}

func triggersTemporal(keyphrases, triggerKeywords []string) bool {
	for _, kp := range keyphrases {
		for _, trigger := range triggerKeywords {
			if strings.Contains(strings.ToLower(kp), strings.ToLower(trigger)) {
				return true
			}
		}
	}
	return false
}

// temporallyRank fetches the configured date property for the candidate
// set, keeps only parseable YYYY-MM-DD values, sorts descending, and
// truncates to 1 — "latest wins" per §4.E step 5.
func temporallyRank(ctx context.Context, fetcher storage.PropertyFetcher, candidates []storage.SearchResult, cfg TemporalRankingConfig, owner *string) []storage.SearchResult {
	parentSourceURLs := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		parent := parentLink(c.Link)
		if !seen[parent] {
			seen[parent] = true
			parentSourceURLs = append(parentSourceURLs, parent)
		}
	}

	properties, err := fetcher.GetStringPropertiesForDocuments(ctx, parentSourceURLs, cfg.PropertyName, owner)
	if err != nil {
		logging.Warn("search: temporal re-rank property fetch failed", "error", err)
		return candidates
	}

	type dated struct {
		result storage.SearchResult
		date   time.Time
	}
	var withDates []dated
	for _, c := range candidates {
		raw, ok := properties[parentLink(c.Link)]
		if !ok {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		withDates = append(withDates, dated{result: c, date: t})
	}

	if len(withDates) == 0 {
		return candidates
	}

	sort.SliceStable(withDates, func(i, j int) bool { return withDates[i].date.After(withDates[j].date) })
	return []storage.SearchResult{withDates[0].result}
}

func parentLink(link string) string {
	if i := strings.Index(link, "#"); i >= 0 {
		return link[:i]
	}
	return link
}

func unionDedup(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

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
