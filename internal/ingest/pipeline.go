// Package ingest implements the ingestion pipeline: the shared
// Restructure+Persist finisher every per-source ingestor (web, pdf, sheet,
// text, nosql) funnels raw extracted text through after Stage 1
// (fetch/extract) has produced it. Grounded on the teacher's
// internal/fetch/processor.go orchestration shape, generalized from "fetch
// one article, summarize it" to "restructure arbitrary extracted text into
// canonical YAML, then persist one chunk document per section".
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/canon"
	"github.com/anyrag-go/ragcore/internal/ids"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/metadata"
	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

// EntityGraph is the narrow capability the optional knowledge graph
// exposes to the pipeline: recording which entities co-occurred in a
// chunk's metadata facets. internal/graph.Graph satisfies this; a nil
// EntityGraph in Options disables the feature entirely.
type EntityGraph interface {
	AddFromFacets(documentID string, facets []metadata.Facet)
}

// RestructureSystemPrompt directs the model to produce canonical YAML in
// the YamlContent schema (§3, internal/canon.Content) from arbitrary
// extracted text.
const RestructureSystemPrompt = `Restructure the content below into YAML matching exactly this schema:

sections:
  - title: string
    faqs:
      - question: string
        answer: string

Group related information under section titles that summarize their content. Break down facts into question/answer pairs that capture what a reader would want to know. Preserve all factual content; do not invent information. Respond with ONLY the YAML document, no markdown fences, no prose.`

// Store is the storage capability the pipeline finisher needs: document
// upsert, embedding replacement, and whatever metadata.Store requires.
type Store interface {
	UpsertDocument(ctx context.Context, id string, owner *string, sourceURL, title, content string, createdAt time.Time) error
	ReplaceEmbedding(ctx context.Context, documentID, modelName string, vector []float32) error
	metadata.Store
}

// Result is what every ingestor's Ingest operation returns: the uniform
// `{documents_added, source, document_ids, metadata?}` contract of §4.C.
type Result struct {
	DocumentsAdded int
	Source         string
	DocumentIDs    []string
}

// Options bundles the dependencies and tunables the finisher needs that are
// identical across every source type.
type Options struct {
	Store          Store
	Gen            ai.Generator
	Embedder       ai.Embedder
	EmbeddingModel string
	MetadataPrompt string

	// Graph optionally records entity co-occurrence for the supplemental
	// knowledge graph (§5's "graph-enabling ingestion path"). Nil disables
	// it; ingestion behaves identically either way.
	Graph EntityGraph
}

// Finish runs Stage 2 (Restructure) and Stage 3 (Persist + Extract
// Metadata) of §4.C over rawText already produced by a source-specific
// Stage 1. sourceURL is the document's identity key; owner optionally
// scopes it to a caller.
//
// If restructuring fails or returns empty output, nothing is stored and the
// Result reports zero documents added. On a YAML parse failure (or a parse
// with no sections), the raw restructured text is stored as a single
// fallback document (§4.C: "on parse failure, the raw restructured text is
// stored as a single fallback document") — this still counts as one
// document added, never an error to the caller,
// since a document with unparsed content is still useful for keyword
// search even though the search engine cannot chunk-expand it.
func Finish(ctx context.Context, opts Options, sourceURL string, owner *string, rawText string) (Result, error) {
	if strings.TrimSpace(rawText) == "" {
		return Result{Source: sourceURL}, nil
	}

	restructured, err := opts.Gen.Generate(ctx, RestructureSystemPrompt, rawText)
	if err != nil || strings.TrimSpace(restructured) == "" {
		logging.Warn("ingest: restructure produced empty content", "source_url", sourceURL, "error", err)
		return Result{Source: sourceURL}, nil
	}

	content, parseErr := canon.Parse(stripYAMLFences(restructured))
	if parseErr != nil || len(content.Sections) == 0 {
		logging.Warn("ingest: restructured output was not valid canonical YAML, storing as fallback document", "source_url", sourceURL, "error", parseErr)
		return persistFallback(ctx, opts, sourceURL, owner, restructured)
	}

	return persistSections(ctx, opts, sourceURL, owner, content)
}

func persistFallback(ctx context.Context, opts Options, sourceURL string, owner *string, text string) (Result, error) {
	id := ids.ForSourceURL(sourceURL)
	title := firstLine(text)

	if err := opts.Store.UpsertDocument(ctx, id, owner, sourceURL, title, text, time.Now().UTC()); err != nil {
		return Result{}, fmt.Errorf("%w: persisting fallback document: %v", ragerr.ErrDatabase, err)
	}
	embedAndExtract(ctx, opts, id, owner, text)

	return Result{DocumentsAdded: 1, Source: sourceURL, DocumentIDs: []string{id}}, nil
}

func persistSections(ctx context.Context, opts Options, sourceURL string, owner *string, content canon.Content) (Result, error) {
	documentIDs := make([]string, 0, len(content.Sections))

	for i, section := range content.Sections {
		sectionYAML, err := canon.MarshalSection(section)
		if err != nil {
			return Result{}, fmt.Errorf("%w: marshaling section %d: %v", ragerr.ErrParse, i, err)
		}

		id := idForSection(sourceURL, i)
		if err := opts.Store.UpsertDocument(ctx, id, owner, sectionSourceURL(sourceURL, i), section.Title, sectionYAML, time.Now().UTC()); err != nil {
			return Result{}, fmt.Errorf("%w: persisting chunk %d: %v", ragerr.ErrDatabase, i, err)
		}
		embedAndExtract(ctx, opts, id, owner, sectionYAML)
		documentIDs = append(documentIDs, id)
	}

	return Result{DocumentsAdded: len(documentIDs), Source: sourceURL, DocumentIDs: documentIDs}, nil
}

func embedAndExtract(ctx context.Context, opts Options, documentID string, owner *string, content string) {
	if opts.Embedder != nil {
		vectors, err := opts.Embedder.EmbedBatch(ctx, []string{content})
		if err != nil || len(vectors) == 0 {
			logging.Warn("ingest: embedding failed, document remains keyword-searchable only", "document_id", documentID, "error", err)
		} else if err := opts.Store.ReplaceEmbedding(ctx, documentID, opts.EmbeddingModel, vectors[0]); err != nil {
			logging.Warn("ingest: storing embedding failed", "document_id", documentID, "error", err)
		}
	}

	facets, err := metadata.ExtractAndStore(ctx, opts.Gen, opts.Store, documentID, owner, content, opts.MetadataPrompt)
	if err != nil {
		logging.Warn("ingest: metadata extraction failed, ingestion proceeds regardless", "document_id", documentID, "error", err)
		return
	}

	if opts.Graph != nil {
		opts.Graph.AddFromFacets(documentID, facets)
	}
}

func idForSection(sourceURL string, index int) string {
	return ids.ForSection(sourceURL, index)
}

func sectionSourceURL(sourceURL string, index int) string {
	return fmt.Sprintf("%s#section_%d", sourceURL, index)
}

func stripYAMLFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```yaml")
	s = strings.TrimPrefix(s, "```yml")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}

// compile-time interface assertions: storage.SQLiteStore must satisfy the
// finisher's narrow Store contract.
var _ Store = (*storage.SQLiteStore)(nil)
