package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// SQLiteStore is the default Storage Layer backend: a single SQLite
// database file implementing every capability. Grounded on
// internal/store/store.go's NewStore/initialize idiom (database/sql +
// mattn/go-sqlite3, idempotent CREATE TABLE IF NOT EXISTS).
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store under
// dataDir/documents.db and initializes its schema.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "documents.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: initializing schema: %w", err)
	}
	return s, nil
}

// DB exposes the underlying pool for callers that must issue statements
// this interface doesn't cover. The handle is cloneable/shared per the "shared by many; lifetime =
// longest holder" design note — callers must not close it themselves.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner_id TEXT,
			source_url TEXT UNIQUE NOT NULL,
			title TEXT,
			content TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS document_embeddings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			model_name TEXT NOT NULL,
			embedding BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_document_embeddings_document_id ON document_embeddings(document_id);`,
		`CREATE TABLE IF NOT EXISTS content_metadata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			owner_id TEXT,
			metadata_type TEXT NOT NULL,
			metadata_subtype TEXT,
			metadata_value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_content_metadata_document_id ON content_metadata(document_id);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			identifier TEXT UNIQUE NOT NULL,
			role TEXT,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func ownerClause(owner *string, column string) (string, []any) {
	if owner == nil {
		return "", nil
	}
	return fmt.Sprintf(" AND (%s IS NULL OR %s = ?)", column, column), []any{*owner}
}

// UpsertDocument inserts a document or, if its source_url already exists,
// updates its content/title/timestamp in place — the idempotent re-ingest
// contract.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, id string, owner *string, sourceURL, title, content string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, source_url, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			created_at = excluded.created_at
	`, id, owner, sourceURL, title, content, createdAt)
	if err != nil {
		return fmt.Errorf("%w: upserting document: %v", ragerr.ErrDatabase, err)
	}
	return nil
}

// ReplaceEmbedding deletes any existing embedding for modelName and inserts
// the new vector, matching the "regenerated when content changes" lifecycle.
func (s *SQLiteStore) ReplaceEmbedding(ctx context.Context, documentID, modelName string, vector []float32) error {
	bytes, err := SerializeEmbedding(vector)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning tx: %v", ragerr.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_embeddings WHERE document_id = ? AND model_name = ?`, documentID, modelName); err != nil {
		return fmt.Errorf("%w: clearing embedding: %v", ragerr.ErrDatabase, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO document_embeddings (document_id, model_name, embedding) VALUES (?, ?, ?)`, documentID, modelName, bytes); err != nil {
		return fmt.Errorf("%w: inserting embedding: %v", ragerr.ErrDatabase, err)
	}
	return tx.Commit()
}

// ReplaceMetadata deletes all prior metadata rows for a document and
// inserts the new set in a single transaction, per §4.D's invariant.
func (s *SQLiteStore) ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []MetadataRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning tx: %v", ragerr.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_metadata WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: clearing metadata: %v", ragerr.ErrDatabase, err)
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_metadata (document_id, owner_id, metadata_type, metadata_subtype, metadata_value)
			VALUES (?, ?, ?, ?, ?)
		`, documentID, owner, r.Type, r.Subtype, r.Value); err != nil {
			return fmt.Errorf("%w: inserting metadata: %v", ragerr.ErrDatabase, err)
		}
	}
	return tx.Commit()
}

// MetadataRow is one {type, subtype, value} facet extracted for a document.
type MetadataRow struct {
	Type    string
	Subtype string
	Value   string
}

// DocumentVersion is one row of a source_url's document history, as read by
// the Curator's scan step.
type DocumentVersion struct {
	ID      string
	Content string
}

// DocumentVersionsBySourceURL returns every document sharing sourceURL,
// oldest first — the Curator's "scan" step.
func (s *SQLiteStore) DocumentVersionsBySourceURL(ctx context.Context, sourceURL string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content FROM documents WHERE source_url = ? ORDER BY created_at ASC
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing document versions: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	var out []DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.Content); err != nil {
			return nil, fmt.Errorf("%w: scanning document version: %v", ragerr.ErrDatabase, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ConsolidateDocuments implements the Curator's "update-then-delete" step:
// the canonical document is rewritten in place with fresh title/content and
// a bumped created_at, every other id in staleIDs is deleted, and the
// canonical document's metadata is cleared so the caller can regenerate it —
// all within one transaction.
func (s *SQLiteStore) ConsolidateDocuments(ctx context.Context, canonicalID, newTitle, newContent string, staleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning tx: %v", ragerr.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET title = ?, content = ?, created_at = CURRENT_TIMESTAMP WHERE id = ?
	`, newTitle, newContent, canonicalID); err != nil {
		return fmt.Errorf("%w: updating canonical document: %v", ragerr.ErrDatabase, err)
	}

	if len(staleIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(staleIDs)), ",")
		args := make([]any, len(staleIDs))
		for i, id := range staleIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM documents WHERE id IN (%s)`, placeholders), args...); err != nil {
			return fmt.Errorf("%w: deleting stale versions: %v", ragerr.ErrDatabase, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_metadata WHERE document_id = ?`, canonicalID); err != nil {
		return fmt.Errorf("%w: clearing canonical metadata: %v", ragerr.ErrDatabase, err)
	}

	return tx.Commit()
}

// ExecuteQuery implements QueryExecutor.
func (s *SQLiteStore) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return nil, fmt.Errorf("%w: query must start with SELECT or WITH", ragerr.ErrUnsupportedOperation)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: executing query: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %v", ragerr.ErrDatabase, err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ragerr.ErrDatabase, err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetTableSchema implements SchemaIntrospector using SQLite's
// pragma_table_info, following the teacher's migration checks which query
// the same pragma.
func (s *SQLiteStore) GetTableSchema(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema for %s: %v", ragerr.ErrDatabase, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dtype string
		var notNull int
		if err := rows.Scan(&name, &dtype, &notNull); err != nil {
			return nil, fmt.Errorf("%w: scanning schema row: %v", ragerr.ErrDatabase, err)
		}
		cols = append(cols, Column{Name: name, DataType: dtype, Nullable: notNull == 0})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", ragerr.ErrNotFound, table)
	}
	return cols, rows.Err()
}

// KeywordSearch implements KeywordSearcher: case-insensitive substring
// match across title+content, ranked by match count.
func (s *SQLiteStore) KeywordSearch(ctx context.Context, query string, limit int, owner *string) ([]SearchResult, error) {
	clause, args := ownerClause(owner, "owner_id")
	pattern := "%" + strings.ToLower(query) + "%"
	args = append([]any{strings.ToLower(query), pattern, pattern}, args...)
	args = append(args, limit)

	sqlQuery := fmt.Sprintf(`
		SELECT title, source_url, content,
			(LENGTH(LOWER(content)) - LENGTH(REPLACE(LOWER(content), ?, ''))) AS match_weight
		FROM documents
		WHERE (LOWER(title) LIKE ? OR LOWER(content) LIKE ?)%s
		ORDER BY match_weight DESC
		LIMIT ?
	`, clause)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var title, link, content string
		var weight int64
		if err := rows.Scan(&title, &link, &content, &weight); err != nil {
			return nil, fmt.Errorf("%w: scanning keyword row: %v", ragerr.ErrDatabase, err)
		}
		results = append(results, SearchResult{Title: title, Link: link, Description: content, Score: float64(weight)})
	}
	return results, rows.Err()
}

// VectorSearch implements VectorSearcher. SQLite has no native vector
// index, so this does a bounded full scan over embedding-bearing documents
// and ranks by cosine similarity in process — an acceptable implementation
// per §4.A ("a full scan over a bounded working set" is explicitly allowed).
func (s *SQLiteStore) VectorSearch(ctx context.Context, vector []float32, limit int, owner *string) ([]SearchResult, error) {
	clause, args := ownerClause(owner, "d.owner_id")

	sqlQuery := fmt.Sprintf(`
		SELECT d.title, d.source_url, d.content, e.embedding
		FROM document_embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE 1=1%s
	`, clause)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	type scored struct {
		SearchResult
	}
	var all []scored
	for rows.Next() {
		var title, link, content string
		var blob []byte
		if err := rows.Scan(&title, &link, &content, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning vector row: %v", ragerr.ErrDatabase, err)
		}
		docVec, err := DeserializeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ragerr.ErrEmbedding, err)
		}
		sim := CosineSimilarity(vector, docVec)
		all = append(all, scored{SearchResult{Title: title, Link: link, Description: content, Score: sim}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]SearchResult, len(all))
	for i, a := range all {
		out[i] = a.SearchResult
	}
	return out, nil
}

// MetadataSearch implements MetadataSearcher.
func (s *SQLiteStore) MetadataSearch(ctx context.Context, entities, keyphrases []string, owner *string, limit int) ([]SearchResult, error) {
	values := dedupeLower(append(append([]string{}, entities...), keyphrases...))
	if len(values) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, 0, len(values)+2)
	for _, v := range values {
		args = append(args, v)
	}

	clause, ownerArgs := ownerClause(owner, "d.owner_id")
	args = append(args, ownerArgs...)
	args = append(args, limit)

	sqlQuery := fmt.Sprintf(`
		SELECT DISTINCT d.title, d.source_url, d.content
		FROM documents d
		JOIN content_metadata m ON m.document_id = d.id
		WHERE LOWER(TRIM(m.metadata_value)) IN (%s)%s
		LIMIT ?
	`, placeholders, clause)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata search: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var title, link, content string
		if err := rows.Scan(&title, &link, &content); err != nil {
			return nil, fmt.Errorf("%w: scanning metadata row: %v", ragerr.ErrDatabase, err)
		}
		results = append(results, SearchResult{Title: title, Link: link, Description: content, Score: 1})
	}
	return results, rows.Err()
}

// GetStringPropertiesForDocuments implements PropertyFetcher. Arbitrary
// named document properties (e.g. "published_date") are stored as
// content_metadata rows with metadata_type="PROPERTY" and metadata_subtype
// set to the property name; property is matched against metadata_subtype.
// sourceURLs matches documents.source_url, not documents.id — callers (the
// search engine's temporal re-rank) key their candidates by source_url/link,
// never by the document's UUIDv5 id, so the lookup must too.
func (s *SQLiteStore) GetStringPropertiesForDocuments(ctx context.Context, sourceURLs []string, property string, owner *string) (map[string]string, error) {
	if len(sourceURLs) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sourceURLs)), ",")
	args := make([]any, 0, len(sourceURLs)+2)
	for _, sourceURL := range sourceURLs {
		args = append(args, sourceURL)
	}
	args = append(args, property)

	clause, ownerArgs := ownerClause(owner, "d.owner_id")
	args = append(args, ownerArgs...)

	sqlQuery := fmt.Sprintf(`
		SELECT d.source_url, m.metadata_value
		FROM documents d
		JOIN content_metadata m ON m.document_id = d.id
		WHERE d.source_url IN (%s) AND m.metadata_subtype = ?%s
	`, placeholders, clause)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching properties: %v", ragerr.ErrDatabase, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var link, value string
		if err := rows.Scan(&link, &value); err != nil {
			return nil, fmt.Errorf("%w: scanning property row: %v", ragerr.ErrDatabase, err)
		}
		out[link] = value
	}
	return out, rows.Err()
}

func dedupeLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
