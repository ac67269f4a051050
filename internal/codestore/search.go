package codestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/rank"
	"github.com/anyrag-go/ragcore/internal/search"
	"github.com/anyrag-go/ragcore/internal/storage"
)

const perRepoChannelLimit = 20
const federatedResultLimit = 20

// SearchAcrossRepos performs the federated code-example search: the query
// is analyzed once, then fanned out concurrently to every repoSpec
// ("repo_name" or "repo_name:version"); each repo runs keyword and vector
// search against its own isolated database and fuses them with RRF, and
// the union across all repos is sorted and truncated once more. Grounded
// on
// original_source/crates/lib/src/github_ingest/search_logic.rs's
// search_across_repos.
func SearchAcrossRepos(ctx context.Context, mgr *StorageManager, gen ai.Generator, embedder ai.Embedder, query string, repoSpecs []string) ([]storage.SearchResult, error) {
	logging.Info("codestore: federated search starting", "query", query, "repos", repoSpecs)

	analyzed := search.AnalyzeQuery(ctx, gen, query, search.DefaultPrompts())
	keywordQuery := strings.TrimSpace(strings.Join(analyzed.Keyphrases, " "))
	if keywordQuery == "" {
		keywordQuery = query
	}

	vectors, err := embedder.EmbedBatch(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("codestore: embedding federated query: %w", err)
	}
	queryVector := vectors[0]

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []storage.SearchResult
	)

	for _, spec := range repoSpecs {
		spec := spec
		wg.Add(1)
		go func() {
			defer wg.Done()
			repoResults, err := searchOneRepo(ctx, mgr, spec, keywordQuery, queryVector)
			if err != nil {
				logging.Warn("codestore: repo search failed", "repo_spec", spec, "error", err)
				return
			}
			mu.Lock()
			results = append(results, repoResults...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > federatedResultLimit {
		results = results[:federatedResultLimit]
	}
	return results, nil
}

func searchOneRepo(ctx context.Context, mgr *StorageManager, spec, keywordQuery string, queryVector []float32) ([]storage.SearchResult, error) {
	repoName, version := parseRepoSpec(spec)
	if version == "" {
		latest, ok, err := mgr.GetLatestVersion(ctx, repoName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("codestore: no versions found for repo %q", repoName)
		}
		version = latest
	}

	db, err := mgr.openRepoDB(ctx, repoName)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	keywordResults, err := keywordSearchForRepo(ctx, db, version, keywordQuery, perRepoChannelLimit)
	if err != nil {
		logging.Warn("codestore: keyword search failed for repo", "repo", repoName, "error", err)
		keywordResults = nil
	}
	vectorResults, err := vectorSearchForRepo(ctx, db, version, queryVector, perRepoChannelLimit)
	if err != nil {
		logging.Warn("codestore: vector search failed for repo", "repo", repoName, "error", err)
		vectorResults = nil
	}

	return rank.ReciprocalRankFusion(rank.DefaultK, vectorResults, keywordResults), nil
}

func keywordSearchForRepo(ctx context.Context, db *sql.DB, version, query string, limit int) ([]storage.SearchResult, error) {
	pattern := "%" + query + "%"
	rows, err := db.QueryContext(ctx, `
		SELECT example_handle, source_file, content
		FROM generated_examples
		WHERE version = ? AND (content LIKE ? OR example_handle LIKE ?)
		LIMIT ?
	`, version, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []storage.SearchResult
	for rows.Next() {
		var handle, sourceFile, content string
		if err := rows.Scan(&handle, &sourceFile, &content); err != nil {
			return nil, err
		}
		out = append(out, storage.SearchResult{Title: handle, Link: sourceFile, Description: content, Score: 0.5})
	}
	return out, rows.Err()
}

func vectorSearchForRepo(ctx context.Context, db *sql.DB, version string, queryVector []float32, limit int) ([]storage.SearchResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ge.example_handle, ge.source_file, ge.content, ee.embedding
		FROM example_embeddings ee
		JOIN generated_examples ge ON ee.example_id = ge.id
		WHERE ge.version = ?
	`, version)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []storage.SearchResult
	for rows.Next() {
		var handle, sourceFile, content string
		var blob []byte
		if err := rows.Scan(&handle, &sourceFile, &content, &blob); err != nil {
			return nil, err
		}
		exampleVector, err := storage.DeserializeEmbedding(blob)
		if err != nil {
			continue
		}
		sim := storage.CosineSimilarity(queryVector, exampleVector)
		out = append(out, storage.SearchResult{Title: handle, Link: sourceFile, Description: content, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
