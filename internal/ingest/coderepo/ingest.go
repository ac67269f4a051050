package coderepo

import (
	"context"
	"fmt"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/codestore"
	"github.com/anyrag-go/ragcore/internal/logging"
)

// Result summarizes one Ingest call: the resolved version, how many
// examples were extracted, and how many were newly embedded.
type Result struct {
	RepoName         string
	Version          string
	ExamplesStored   int
	ExamplesEmbedded int
}

// Ingest runs the full code-repository pipeline: clone at versionSpec (or
// the latest semver tag), extract candidate examples, persist them under
// repoName's isolated database, and embed any example that has no stored
// vector yet, recording new vectors under embeddingModel. This is the single per-source ingestor operation tying
// together Crawl, ExtractExamples and codestore.StorageManager — the three
// primitives the Rust original calls in sequence from its CLI entrypoint.
func Ingest(ctx context.Context, mgr *codestore.StorageManager, embedder ai.Embedder, repoURL, versionSpec, embeddingModel string) (Result, error) {
	crawl, err := Crawl(ctx, repoURL, versionSpec)
	if err != nil {
		return Result{}, fmt.Errorf("coderepo: ingest: %w", err)
	}
	defer crawl.Close()

	repo, err := mgr.TrackRepository(ctx, repoURL)
	if err != nil {
		return Result{}, fmt.Errorf("coderepo: ingest: %w", err)
	}

	examples, err := ExtractExamples(crawl.Path, crawl.Version)
	if err != nil {
		return Result{}, fmt.Errorf("coderepo: ingest: %w", err)
	}

	stored, err := mgr.StoreExamples(ctx, repo, examples)
	if err != nil {
		return Result{}, fmt.Errorf("coderepo: ingest: %w", err)
	}

	embedded, err := mgr.EmbedAndStoreExamples(ctx, repo, embedder, embeddingModel)
	if err != nil {
		return Result{}, fmt.Errorf("coderepo: ingest: %w", err)
	}

	logging.Info("coderepo: ingest complete", "repo", repo.RepoName, "version", crawl.Version, "stored", stored, "embedded", embedded)
	return Result{
		RepoName:         repo.RepoName,
		Version:          crawl.Version,
		ExamplesStored:   stored,
		ExamplesEmbedded: embedded,
	}, nil
}
