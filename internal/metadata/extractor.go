// Package metadata implements the LLM-driven extraction of categories,
// keyphrases, and typed entities per chunk. Grounded on
// internal/categorization/categorizer.go's narrow-LLM-client pattern: the
// extractor depends only on ai.Generator, not the full Provider surface.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// DefaultSystemPrompt instructs the model to preserve source language, cap
// facet counts, and reject generic user-identifier strings, per §4.D. The
// corpus-specific Thai user-identifier regex carve-out is intentionally
// generalized away here (see DESIGN.md open question).
const DefaultSystemPrompt = `Extract structured metadata from the content below. Respond with a JSON array of objects shaped {"type": "CATEGORY"|"KEYPHRASE"|"ENTITY", "subtype": string, "value": string}.

Rules:
- Preserve the source language verbatim; never translate values.
- Emit at most one CATEGORY.
- Emit 5 to 10 KEYPHRASE entries, each with subtype "CONCEPT".
- Emit 5 to 10 ENTITY entries, each with a subtype describing the entity kind (PERSON, PRODUCT, ORGANIZATION, ...).
- Reject generic user-identifier or account-number strings; they are not meaningful entities.
- Respond with ONLY the JSON array, no prose, no markdown fences.`

// Facet is one extracted {type, subtype, value} row.
type Facet struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Value   string `json:"value"`
}

// Store is the narrow storage capability the extractor needs: replacing a
// document's metadata set atomically.
type Store interface {
	ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error
}

// ExtractAndStore implements the `extract_and_store` contract: send
// content to the LLM, parse the JSON facet array (tolerating ```json
// fences), delete all prior metadata for the document, and insert the new
// set in a single transaction via Store.ReplaceMetadata. It returns the
// parsed facets so callers that build auxiliary structures from ENTITY
// rows (the optional knowledge graph) don't need to re-parse the LLM
// response.
//
// Extraction failures are logged here and also returned as errors. The
// callers that keep going regardless (§4.C: "metadata extraction failures
// are logged and do not abort ingestion") — the ingest finisher and the
// Curator — log the returned error and continue.
func ExtractAndStore(ctx context.Context, gen ai.Generator, store Store, documentID string, owner *string, content, systemPrompt string) ([]Facet, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	raw, err := gen.Generate(ctx, systemPrompt, content)
	if err != nil {
		logging.Warn("metadata: extraction generate failed", "document_id", documentID, "error", err)
		return nil, fmt.Errorf("metadata: generate: %w", err)
	}

	facets, err := parseFacets(raw)
	if err != nil {
		logging.Warn("metadata: extraction response was not valid JSON", "document_id", documentID, "raw", raw, "error", err)
		return nil, fmt.Errorf("metadata: parse: %w", err)
	}

	rows := make([]storage.MetadataRow, 0, len(facets))
	seenCategory := false
	for _, f := range facets {
		t := strings.ToUpper(strings.TrimSpace(f.Type))
		if t == "CATEGORY" {
			if seenCategory {
				continue
			}
			seenCategory = true
		}
		rows = append(rows, storage.MetadataRow{Type: t, Subtype: f.Subtype, Value: f.Value})
	}

	if err := store.ReplaceMetadata(ctx, documentID, owner, rows); err != nil {
		return facets, fmt.Errorf("metadata: storing facets: %w", err)
	}
	return facets, nil
}

func parseFacets(raw string) ([]Facet, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var facets []Facet
	if err := json.Unmarshal([]byte(cleaned), &facets); err != nil {
		return nil, err
	}
	return facets, nil
}
