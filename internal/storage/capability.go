// Package storage exposes the document store as a set of orthogonal
// capability interfaces, following the capability-interface decomposition
// in the teacher's internal/persistence/interfaces.go (there: per-entity
// repositories aggregated behind a Database interface; here: per-operation
// capabilities a backend opts into independently). The Hybrid Search Engine
// is written generically over any type that satisfies the capabilities it
// needs, not over a concrete backend type.
package storage

import "context"

// SearchResult is the uniform shape every retrieval capability returns.
// link is the source URL, or "source_url#Section_Title" for a chunk.
// description carries the content to use as LLM context.
type SearchResult struct {
	Title       string
	Link        string
	Description string
	Score       float64
}

// Column describes one column of a table as returned by schema
// introspection.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// QueryExecutor executes an already-generated read-only query against the
// backend and returns rows as JSON-compatible maps. Backends that cannot
// run arbitrary queries return ragerr.ErrUnsupportedOperation.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error)
}

// SchemaIntrospector returns a table's column list. Returns
// ragerr.ErrNotFound when the table does not exist.
type SchemaIntrospector interface {
	GetTableSchema(ctx context.Context, table string) ([]Column, error)
}

// KeywordSearcher performs a case-insensitive substring match across
// title+content, ranked by match count, filtered by ownership.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query string, limit int, owner *string) ([]SearchResult, error)
}

// VectorSearcher performs cosine-similarity search over embedding-bearing
// documents, filtered by ownership. Score is similarity in [0,1].
type VectorSearcher interface {
	VectorSearch(ctx context.Context, vector []float32, limit int, owner *string) ([]SearchResult, error)
}

// MetadataSearcher matches documents carrying a metadata row whose value
// equals one of the supplied entities or keyphrases (case-insensitive,
// trimmed), filtered by ownership.
type MetadataSearcher interface {
	MetadataSearch(ctx context.Context, entities, keyphrases []string, owner *string, limit int) ([]SearchResult, error)
}

// PropertyFetcher bulk-projects a single metadata property for a set of
// parent documents, keyed by source_url (not the document's UUID), used by
// temporal re-ranking: callers key their result map on the same
// source_url/link they queried with.
type PropertyFetcher interface {
	GetStringPropertiesForDocuments(ctx context.Context, sourceURLs []string, property string, owner *string) (map[string]string, error)
}

// HybridBackend is the union of capabilities the Hybrid Search Engine
// needs. Any backend that implements all four can be searched; this is
// "polymorphic over the capability set, not over a base class" per the
// design note.
type HybridBackend interface {
	KeywordSearcher
	VectorSearcher
	MetadataSearcher
	PropertyFetcher
}
