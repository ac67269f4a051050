// Package curator implements the automated knowledge synthesis pass: it
// scans for documents fragmented across multiple rows under the same
// source_url, asks the LLM to synthesize them into one authoritative
// version, and consolidates the group with an update-then-delete
// transaction. Grounded on
// original_source/crates/lib/src/curator.rs, which is this package's
// definitive reference for prompt text, separator, and title format.
package curator

import (
	"context"
	"fmt"
	"strings"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/metadata"
	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// synthesisPrompt is used verbatim, unchanged from the reference
// implementation's CURATOR_SYNTHESIS_PROMPT.
const synthesisPrompt = "Analyze these different versions of the same document, provided below. Create a single, definitive summary of the current state of the information, prioritizing the most recent content. Identify and resolve any conflicting information found across the documents."

// Store is the narrow storage capability the Curator needs.
type Store interface {
	DocumentVersionsBySourceURL(ctx context.Context, sourceURL string) ([]storage.DocumentVersion, error)
	ConsolidateDocuments(ctx context.Context, canonicalID, newTitle, newContent string, staleIDs []string) error
	ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error
}

// Result reports what synthesize_by_source did.
type Result struct {
	SourceURL        string
	CanonicalID      string
	VersionsMerged   int
	SynthesizedTitle string
}

// Curator holds the dependencies needed for synthesis.
type Curator struct {
	store Store
	gen   ai.Generator
}

// New builds a Curator over the given storage and generation capabilities.
func New(store Store, gen ai.Generator) *Curator {
	return &Curator{store: store, gen: gen}
}

// SynthesizeBySource scans for documents sharing sourceURL, synthesizes
// them into a single document via the LLM, and consolidates the group.
// Returns (nil, nil) when fewer than two versions exist — consolidation is
// a no-op, not an error, per the original implementation.
func (c *Curator) SynthesizeBySource(ctx context.Context, sourceURL string, owner *string) (*Result, error) {
	logging.Info("curator: scanning for fragmented versions", "source_url", sourceURL)

	versions, err := c.store.DocumentVersionsBySourceURL(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("curator: scanning versions: %w", err)
	}
	if len(versions) < 2 {
		logging.Info("curator: found fewer than 2 versions, no synthesis needed", "source_url", sourceURL, "count", len(versions))
		return nil, nil
	}

	contents := make([]string, 0, len(versions))
	for _, v := range versions {
		contents = append(contents, v.Content)
	}
	joinedVersions := strings.Join(contents, "\n\n---\n\n")

	synthesized, err := c.gen.Generate(ctx, synthesisPrompt, joinedVersions)
	if err != nil {
		return nil, fmt.Errorf("%w: curator synthesis: %v", ragerr.ErrLLM, err)
	}

	canonicalID := versions[0].ID
	staleIDs := make([]string, 0, len(versions)-1)
	for _, v := range versions[1:] {
		staleIDs = append(staleIDs, v.ID)
	}

	newTitle := fmt.Sprintf("Synthesis of %s", sourceURL)
	if err := c.store.ConsolidateDocuments(ctx, canonicalID, newTitle, synthesized, staleIDs); err != nil {
		return nil, fmt.Errorf("curator: consolidating: %w", err)
	}

	// Regenerate metadata for the synthesized content with the real
	// extraction path rather than the literal test row the reference
	// implementation hardcodes for its own fixture.
	if _, err := metadata.ExtractAndStore(ctx, c.gen, c.store, canonicalID, owner, synthesized, ""); err != nil {
		logging.Warn("curator: metadata regeneration failed after consolidation", "document_id", canonicalID, "error", err)
	}

	logging.Info("curator: consolidated versions into canonical document", "source_url", sourceURL, "versions_merged", len(versions), "canonical_id", canonicalID)

	return &Result{
		SourceURL:        sourceURL,
		CanonicalID:      canonicalID,
		VersionsMerged:   len(versions),
		SynthesizedTitle: newTitle,
	}, nil
}
