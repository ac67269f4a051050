package coderepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anyrag-go/ragcore/internal/codestore"
)

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestExtractExamplesFromReadme(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# Title\n\n```go\nfmt.Println(\"hi\")\n```\n")

	examples, err := ExtractExamples(dir, "v1.0.0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(examples) != 1 {
		t.Fatalf("expected 1 example, got %d: %+v", len(examples), examples)
	}
	if examples[0].SourceType != codestore.SourceReadme {
		t.Fatalf("expected readme source type, got %v", examples[0].SourceType)
	}
	if examples[0].Content != `fmt.Println("hi")` {
		t.Fatalf("unexpected content: %q", examples[0].Content)
	}
}

func TestExtractExamplesFromExamplesDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "examples/basic/main.go", "package main\n\nfunc main() {}\n")

	examples, err := ExtractExamples(dir, "v1.0.0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(examples) != 1 || examples[0].SourceType != codestore.SourceExampleFile {
		t.Fatalf("expected 1 example_file example, got %+v", examples)
	}
}

func TestExtractExamplesFromTestFunctions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "widget_test.go", "package widget\n\nimport \"testing\"\n\nfunc TestAdd(t *testing.T) {\n\tif 1+1 != 2 {\n\t\tt.Fatal(\"bad\")\n\t}\n}\n")

	examples, err := ExtractExamples(dir, "v1.0.0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(examples) != 1 || examples[0].SourceType != codestore.SourceTest {
		t.Fatalf("expected 1 test example, got %+v", examples)
	}
}

func TestExtractExamplesResolvesConflictsByPriority(t *testing.T) {
	dir := t.TempDir()
	shared := "fmt.Println(\"shared\")"
	writeFile(t, dir, "README.md", "```go\n"+shared+"\n```\n")
	writeFile(t, dir, "shared_test.go", "package p\n\nimport \"testing\"\n\nfunc TestShared(t *testing.T) {\n"+shared+"\n}\n")

	examples, err := ExtractExamples(dir, "v1.0.0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(examples) != 1 {
		t.Fatalf("expected conflicting identical content deduplicated to 1, got %d: %+v", len(examples), examples)
	}
	if examples[0].SourceType != codestore.SourceTest {
		t.Fatalf("expected the test-sourced version to win the conflict, got %v", examples[0].SourceType)
	}
}
