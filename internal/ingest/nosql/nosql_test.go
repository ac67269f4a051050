package nosql

import (
	"context"
	"testing"
	"time"

	"github.com/anyrag-go/ragcore/internal/ingest"
	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeProject struct {
	tables  map[string][]string
	rows    map[string][]map[string]string
	failErr error
}

func newFakeProject() *fakeProject {
	return &fakeProject{tables: make(map[string][]string), rows: make(map[string][]map[string]string)}
}

func (f *fakeProject) EnsureTable(ctx context.Context, tableName string, columns []string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.tables[tableName] = columns
	return nil
}

func (f *fakeProject) InsertRow(ctx context.Context, tableName string, row map[string]string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.rows[tableName] = append(f.rows[tableName], row)
	return nil
}

type fakeStore struct{}

func (f *fakeStore) UpsertDocument(ctx context.Context, id string, owner *string, sourceURL, title, content string, createdAt time.Time) error {
	return nil
}
func (f *fakeStore) ReplaceEmbedding(ctx context.Context, documentID, modelName string, vector []float32) error {
	return nil
}
func (f *fakeStore) ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error {
	return nil
}

type fakeGenerator struct{ response string }

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.response, nil
}

func TestIngestCreatesTableAndInsertsUnionOfColumns(t *testing.T) {
	project := newFakeProject()
	documents := []map[string]string{
		{"name": "Ada", "field": "math"},
		{"name": "Grace"},
	}

	opts := Options{
		Options: ingest.Options{
			Store: &fakeStore{},
			Gen:   &fakeGenerator{response: "sections:\n- title: People\n  faqs:\n  - question: who\n    answer: Ada\n"},
		},
		Project:   project,
		TableName: "people",
	}

	result, err := Ingest(context.Background(), opts, "people_collection", documents)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if result.DocumentsAdded != 1 {
		t.Fatalf("expected 1 document added, got %d", result.DocumentsAdded)
	}

	cols, ok := project.tables["people"]
	if !ok {
		t.Fatalf("expected table 'people' to be created")
	}
	if len(cols) != 2 || cols[0] != "field" || cols[1] != "name" {
		t.Fatalf("expected sorted columns [field name], got %v", cols)
	}
	if len(project.rows["people"]) != 2 {
		t.Fatalf("expected 2 rows inserted, got %d", len(project.rows["people"]))
	}
	if project.rows["people"][1]["field"] != "" {
		t.Fatalf("expected missing key to insert as empty string, got %q", project.rows["people"][1]["field"])
	}
}

func TestIngestWithNoDocumentsIsANoop(t *testing.T) {
	project := newFakeProject()
	opts := Options{
		Options:   ingest.Options{Store: &fakeStore{}, Gen: &fakeGenerator{}},
		Project:   project,
		TableName: "empty",
	}

	result, err := Ingest(context.Background(), opts, "empty_collection", nil)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if result.DocumentsAdded != 0 {
		t.Fatalf("expected 0 documents added, got %d", result.DocumentsAdded)
	}
	if len(project.tables) != 0 {
		t.Fatalf("expected no table created for an empty batch")
	}
}

func TestIngestSurfacesProjectTableFailure(t *testing.T) {
	project := newFakeProject()
	project.failErr = context.DeadlineExceeded

	opts := Options{
		Options:   ingest.Options{Store: &fakeStore{}, Gen: &fakeGenerator{}},
		Project:   project,
		TableName: "people",
	}

	_, err := Ingest(context.Background(), opts, "people_collection", []map[string]string{{"name": "Ada"}})
	if err == nil {
		t.Fatal("expected error when project table operations fail")
	}
}
