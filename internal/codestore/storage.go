package codestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anyrag-go/ragcore/internal/ai"
	"github.com/anyrag-go/ragcore/internal/ids"
	"github.com/anyrag-go/ragcore/internal/logging"
	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

const metaDBName = "github_meta.db"

// StorageManager owns the shared repositories index and every per-repo
// SQLite file under baseDir, grounded on
// original_source/crates/lib/src/github_ingest/storage.rs's StorageManager.
type StorageManager struct {
	metaDB  *sql.DB
	baseDir string
}

// NewStorageManager opens (creating if necessary) the metadata database
// that tracks every repo under baseDir.
func NewStorageManager(baseDir string) (*StorageManager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("codestore: creating base directory: %w", err)
	}

	metaDB, err := sql.Open("sqlite3", filepath.Join(baseDir, metaDBName))
	if err != nil {
		return nil, fmt.Errorf("codestore: opening metadata database: %w", err)
	}
	if _, err := metaDB.Exec(`
		CREATE TABLE IF NOT EXISTS repositories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repo_name TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL UNIQUE,
			db_path TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		_ = metaDB.Close()
		return nil, fmt.Errorf("codestore: initializing metadata schema: %w", err)
	}

	logging.Info("codestore: storage manager initialized", "base_dir", baseDir)
	return &StorageManager{metaDB: metaDB, baseDir: baseDir}, nil
}

// Close releases the metadata database connection.
func (m *StorageManager) Close() error {
	return m.metaDB.Close()
}

// TrackRepository registers url if not already tracked, creating its
// dedicated database and schema; if already tracked, returns the existing
// record unchanged.
func (m *StorageManager) TrackRepository(ctx context.Context, url string) (TrackedRepository, error) {
	repoName := ids.RepoSlug(url)

	var existing TrackedRepository
	row := m.metaDB.QueryRowContext(ctx, `SELECT repo_name, url, db_path FROM repositories WHERE url = ?`, url)
	switch err := row.Scan(&existing.RepoName, &existing.URL, &existing.DBPath); err {
	case nil:
		logging.Info("codestore: repository already tracked", "url", url)
		return existing, nil
	case sql.ErrNoRows:
		// fall through to first-time tracking
	default:
		return TrackedRepository{}, fmt.Errorf("%w: checking tracked repositories: %v", ragerr.ErrDatabase, err)
	}

	dbPath := filepath.Join(m.baseDir, repoName+".db")
	repoDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return TrackedRepository{}, fmt.Errorf("%w: opening repo database: %v", ragerr.ErrDatabase, err)
	}
	defer repoDB.Close()
	if err := initializeRepoDB(repoDB); err != nil {
		return TrackedRepository{}, err
	}

	if _, err := m.metaDB.ExecContext(ctx, `
		INSERT INTO repositories (repo_name, url, db_path) VALUES (?, ?, ?)
	`, repoName, url, dbPath); err != nil {
		return TrackedRepository{}, fmt.Errorf("%w: registering repository: %v", ragerr.ErrDatabase, err)
	}

	logging.Info("codestore: tracking new repository", "url", url, "repo_name", repoName)
	return TrackedRepository{RepoName: repoName, URL: url, DBPath: dbPath}, nil
}

func initializeRepoDB(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS generated_examples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			example_handle TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			source_file TEXT NOT NULL,
			source_type TEXT NOT NULL,
			version TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS example_embeddings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			example_id INTEGER NOT NULL REFERENCES generated_examples(id) ON DELETE CASCADE,
			model_name TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: initializing repo schema: %v", ragerr.ErrDatabase, err)
		}
	}
	return nil
}

func (m *StorageManager) dbPathForRepo(ctx context.Context, repoName string) (string, error) {
	var dbPath string
	err := m.metaDB.QueryRowContext(ctx, `SELECT db_path FROM repositories WHERE repo_name = ?`, repoName).Scan(&dbPath)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: repository %q", ragerr.ErrNotFound, repoName)
	}
	if err != nil {
		return "", fmt.Errorf("%w: resolving repo database path: %v", ragerr.ErrDatabase, err)
	}
	return dbPath, nil
}

// openRepoDB opens (without tracking) the per-repo database for repoName.
// Callers must Close it.
func (m *StorageManager) openRepoDB(ctx context.Context, repoName string) (*sql.DB, error) {
	dbPath, err := m.dbPathForRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening repo database: %v", ragerr.ErrDatabase, err)
	}
	return db, nil
}

// StoreExamples replaces all examples for the batch's version with a
// fresh set, using the "delete then insert" idempotency strategy: a
// re-ingest of the same version always reflects the latest extraction
// exactly, never accumulating duplicates.
func (m *StorageManager) StoreExamples(ctx context.Context, repo TrackedRepository, examples []GeneratedExample) (int, error) {
	if len(examples) == 0 {
		return 0, nil
	}
	version := examples[0].Version

	db, err := sql.Open("sqlite3", repo.DBPath)
	if err != nil {
		return 0, fmt.Errorf("%w: opening repo database: %v", ragerr.ErrDatabase, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning tx: %v", ragerr.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM generated_examples WHERE version = ?`, version); err != nil {
		return 0, fmt.Errorf("%w: clearing prior version examples: %v", ragerr.ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO generated_examples (example_handle, content, source_file, source_type, version)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: preparing insert: %v", ragerr.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, ex := range examples {
		if _, err := stmt.ExecContext(ctx, ex.Handle, ex.Content, ex.SourceFile, ex.SourceType.String(), ex.Version); err != nil {
			return 0, fmt.Errorf("%w: inserting example: %v", ragerr.ErrDatabase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing examples: %v", ragerr.ErrDatabase, err)
	}
	logging.Info("codestore: stored examples", "repo", repo.RepoName, "version", version, "count", len(examples))
	return len(examples), nil
}

// EmbedAndStoreExamples embeds every example that has no stored embedding
// yet (from any model) and stores the result under modelName, via a LEFT
// JOIN that finds the gap — a re-run only does incremental work.
func (m *StorageManager) EmbedAndStoreExamples(ctx context.Context, repo TrackedRepository, embedder ai.Embedder, modelName string) (int, error) {
	db, err := sql.Open("sqlite3", repo.DBPath)
	if err != nil {
		return 0, fmt.Errorf("%w: opening repo database: %v", ragerr.ErrDatabase, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT ge.id, ge.content FROM generated_examples ge
		LEFT JOIN example_embeddings ee ON ge.id = ee.example_id
		WHERE ee.id IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: selecting unembedded examples: %v", ragerr.ErrDatabase, err)
	}

	type pending struct {
		id      int64
		content string
	}
	var work []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: scanning pending example: %v", ragerr.ErrDatabase, err)
		}
		work = append(work, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(work) == 0 {
		return 0, nil
	}

	texts := make([]string, len(work))
	for i, p := range work {
		texts[i] = p.content
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding examples: %v", ragerr.ErrEmbedding, err)
	}

	count := 0
	for i, p := range work {
		blob, err := storage.SerializeEmbedding(vectors[i])
		if err != nil {
			return count, err
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO example_embeddings (example_id, model_name, embedding) VALUES (?, ?, ?)
		`, p.id, modelName, blob); err != nil {
			return count, fmt.Errorf("%w: inserting embedding: %v", ragerr.ErrDatabase, err)
		}
		count++
	}
	logging.Info("codestore: embedded examples", "repo", repo.RepoName, "count", count)
	return count, nil
}

// GetLatestVersion returns the most recently created version string stored
// for repoName, or ok=false if the repo has no examples yet.
func (m *StorageManager) GetLatestVersion(ctx context.Context, repoName string) (string, bool, error) {
	db, err := m.openRepoDB(ctx, repoName)
	if err != nil {
		return "", false, err
	}
	defer db.Close()

	var version string
	err = db.QueryRowContext(ctx, `SELECT version FROM generated_examples ORDER BY created_at DESC LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: reading latest version: %v", ragerr.ErrDatabase, err)
	}
	return version, true, nil
}

// GetExamples returns every example stored for repoName at version.
func (m *StorageManager) GetExamples(ctx context.Context, repoName, version string) ([]GeneratedExample, error) {
	db, err := m.openRepoDB(ctx, repoName)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT example_handle, content, source_file, source_type, version
		FROM generated_examples WHERE version = ?
	`, version)
	if err != nil {
		return nil, fmt.Errorf("%w: listing examples: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	var out []GeneratedExample
	for rows.Next() {
		var ex GeneratedExample
		var sourceTypeStr string
		if err := rows.Scan(&ex.Handle, &ex.Content, &ex.SourceFile, &sourceTypeStr, &ex.Version); err != nil {
			return nil, fmt.Errorf("%w: scanning example: %v", ragerr.ErrDatabase, err)
		}
		sourceType, ok := sourceTypeFromString(sourceTypeStr)
		if !ok {
			logging.Warn("codestore: skipping example with unknown source type", "source_type", sourceTypeStr)
			continue
		}
		ex.SourceType = sourceType
		out = append(out, ex)
	}
	return out, rows.Err()
}

func parseRepoSpec(spec string) (repoName, version string) {
	if i := strings.LastIndex(spec, ":"); i >= 0 && i < len(spec)-1 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}
