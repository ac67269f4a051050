// Package coderepo is the code-repository ingestor: it clones a git
// repository at a pinned version and extracts candidate code examples from
// it, handing the result to internal/codestore for persistence. Grounded
// on original_source/crates/lib/src/github_ingest/{crawler,extractor}.rs.
package coderepo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/anyrag-go/ragcore/internal/codestore"
)

var (
	fencedGoBlock  = regexp.MustCompile("(?s)```go\\s*\\n(.*?)\\n```")
	testFuncBody   = regexp.MustCompile(`(?s)func (Test\w+)\(t \*testing\.T\)[^{]*\{\n(.*?)\n\}`)
	docCommentLine = regexp.MustCompile(`^\s*//`)
)

// ExtractExamples walks repoPath and returns every discovered example,
// extracted in ascending priority order and deduplicated by trimmed
// content — identical code found in two places keeps only the
// higher-priority source. Adapted from the Rust extractor's README/
// examples-dir/doc-comment/test-file discovery to Go conventions: fenced
// ```go blocks in README.md, whole files under an examples/ directory,
// fenced ```go blocks inside contiguous "//" comment runs, and
// `func TestXxx(t *testing.T)` bodies in `_test.go` files.
func ExtractExamples(repoPath, version string) ([]codestore.GeneratedExample, error) {
	var readmes, exampleFiles, tests, docSources []string

	err := filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		lower := strings.ToLower(name)
		sep := string(filepath.Separator)
		switch {
		case lower == "readme.md":
			readmes = append(readmes, path)
		case strings.Contains(path, sep+"examples"+sep) && strings.HasSuffix(lower, ".go"):
			exampleFiles = append(exampleFiles, path)
		case strings.HasSuffix(lower, "_test.go"):
			tests = append(tests, path)
		case strings.HasSuffix(lower, ".go"):
			docSources = append(docSources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("coderepo: discovering files: %w", err)
	}

	var all []codestore.GeneratedExample
	all = append(all, parseReadmes(repoPath, readmes, version)...)
	all = append(all, parseExampleFiles(repoPath, exampleFiles, version)...)
	all = append(all, parseDocComments(repoPath, docSources, version)...)
	all = append(all, parseTestFiles(repoPath, tests, version)...)

	return resolveConflicts(all), nil
}

func relPath(repoPath, path string) string {
	rel, err := filepath.Rel(repoPath, path)
	if err != nil {
		return path
	}
	return rel
}

func parseReadmes(repoPath string, files []string, version string) []codestore.GeneratedExample {
	var out []codestore.GeneratedExample
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel := relPath(repoPath, path)
		matches := fencedGoBlock.FindAllStringSubmatchIndex(string(content), -1)
		for i, m := range matches {
			block := strings.TrimSpace(string(content)[m[2]:m[3]])
			if block == "" {
				continue
			}
			line := 1 + strings.Count(string(content)[:m[2]], "\n")
			out = append(out, codestore.GeneratedExample{
				Handle:     fmt.Sprintf("%s:%s:%d:%d", codestore.SourceReadme, rel, line, i),
				Content:    block,
				SourceFile: rel,
				SourceType: codestore.SourceReadme,
				Version:    version,
			})
		}
	}
	return out
}

func parseExampleFiles(repoPath string, files []string, version string) []codestore.GeneratedExample {
	var out []codestore.GeneratedExample
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil || strings.TrimSpace(string(content)) == "" {
			continue
		}
		rel := relPath(repoPath, path)
		out = append(out, codestore.GeneratedExample{
			Handle:     fmt.Sprintf("%s:%s", codestore.SourceExampleFile, rel),
			Content:    string(content),
			SourceFile: rel,
			SourceType: codestore.SourceExampleFile,
			Version:    version,
		})
	}
	return out
}

// parseDocComments collapses contiguous runs of "//" lines into Markdown (by
// stripping the comment marker) and looks for fenced ```go blocks inside
// each run.
func parseDocComments(repoPath string, files []string, version string) []codestore.GeneratedExample {
	var out []codestore.GeneratedExample
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel := relPath(repoPath, path)
		content := string(raw)
		lines := strings.Split(content, "\n")

		var runStart int
		var run []string
		flush := func(endLine int) {
			if len(run) == 0 {
				return
			}
			markdown := stripCommentMarkers(run)
			for i, m := range fencedGoBlock.FindAllStringSubmatch(markdown, -1) {
				block := strings.TrimSpace(m[1])
				if block == "" {
					continue
				}
				out = append(out, codestore.GeneratedExample{
					Handle:     fmt.Sprintf("%s:%s:%d:%d", codestore.SourceDocComment, rel, runStart+1, i),
					Content:    block,
					SourceFile: rel,
					SourceType: codestore.SourceDocComment,
					Version:    version,
				})
			}
			run = nil
		}

		for i, line := range lines {
			if docCommentLine.MatchString(line) {
				if len(run) == 0 {
					runStart = i
				}
				run = append(run, line)
				continue
			}
			flush(i)
		}
		flush(len(lines))
	}
	return out
}

func stripCommentMarkers(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		trimmed = strings.TrimPrefix(trimmed, "//")
		out[i] = strings.TrimPrefix(trimmed, " ")
	}
	return strings.Join(out, "\n")
}

func parseTestFiles(repoPath string, files []string, version string) []codestore.GeneratedExample {
	var out []codestore.GeneratedExample
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel := relPath(repoPath, path)
		for _, m := range testFuncBody.FindAllStringSubmatch(string(content), -1) {
			fnName := m[1]
			body := strings.TrimSpace(m[2])
			if body == "" {
				continue
			}
			out = append(out, codestore.GeneratedExample{
				Handle:     fmt.Sprintf("%s:%s:%s", codestore.SourceTest, rel, fnName),
				Content:    body,
				SourceFile: rel,
				SourceType: codestore.SourceTest,
				Version:    version,
			})
		}
	}
	return out
}

// resolveConflicts keeps, for each distinct trimmed content string, only
// the example with the highest-priority SourceType. Output is sorted by
// dedup key for a deterministic order across runs, since ranging over a Go
// map would otherwise randomize it.
func resolveConflicts(examples []codestore.GeneratedExample) []codestore.GeneratedExample {
	best := make(map[string]codestore.GeneratedExample, len(examples))
	for _, ex := range examples {
		key := strings.TrimSpace(ex.Content)
		if key == "" {
			continue
		}
		existing, ok := best[key]
		if !ok || ex.SourceType > existing.SourceType {
			best[key] = ex
		}
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]codestore.GeneratedExample, 0, len(best))
	for _, key := range keys {
		out = append(out, best[key])
	}
	return out
}
