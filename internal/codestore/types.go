// Package codestore implements the versioned code-example store: per-repo
// isolated SQLite databases tracked from a shared metadata database,
// populated by whatever ingestor discovers examples (see
// internal/ingest/coderepo) and searchable individually or federated
// across many repos at once. Grounded on
// original_source/crates/lib/src/github_ingest/{storage,search_logic}.rs.
package codestore

// ExampleSourceType is the closed set of places an example was discovered,
// ordered by trustworthiness: a `_test.go` function is a stronger signal of
// working code than a doc-comment fence is. Conflict resolution on
// identical content keeps whichever source ranks highest.
type ExampleSourceType int

const (
	SourceReadme ExampleSourceType = iota
	SourceExampleFile
	SourceDocComment
	SourceTest
)

func (t ExampleSourceType) String() string {
	switch t {
	case SourceReadme:
		return "readme"
	case SourceExampleFile:
		return "example_file"
	case SourceDocComment:
		return "doc_comment"
	case SourceTest:
		return "test"
	default:
		return "unknown"
	}
}

func sourceTypeFromString(s string) (ExampleSourceType, bool) {
	switch s {
	case "readme":
		return SourceReadme, true
	case "example_file":
		return SourceExampleFile, true
	case "doc_comment":
		return SourceDocComment, true
	case "test":
		return SourceTest, true
	default:
		return 0, false
	}
}

// GeneratedExample is one discovered code example pinned to the repository
// version it was extracted from.
type GeneratedExample struct {
	Handle     string
	Content    string
	SourceFile string
	SourceType ExampleSourceType
	Version    string
}

// TrackedRepository identifies a repo's dedicated database on disk.
type TrackedRepository struct {
	RepoName string
	URL      string
	DBPath   string
}
