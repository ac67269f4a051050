package promptclient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anyrag-go/ragcore/internal/ragerr"
	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeStore struct {
	schema     map[string][]storage.Column
	queryFn    func(query string) ([]map[string]any, error)
	documents  map[string]string
}

func (f *fakeStore) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	return f.queryFn(query)
}

func (f *fakeStore) GetTableSchema(ctx context.Context, table string) ([]storage.Column, error) {
	cols, ok := f.schema[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrNotFound, table)
	}
	return cols, nil
}

func (f *fakeStore) UpsertDocument(ctx context.Context, id string, owner *string, sourceURL, title, content string, createdAt time.Time) error {
	if f.documents == nil {
		f.documents = map[string]string{}
	}
	f.documents[id] = content
	return nil
}

func (f *fakeStore) ReplaceEmbedding(ctx context.Context, documentID, modelName string, vector []float32) error {
	return nil
}

func (f *fakeStore) ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error {
	return nil
}

type fakeGenerator struct {
	response string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, nil
}

func TestExecuteRewritesLsShorthand(t *testing.T) {
	var capturedQuery string
	store := &fakeStore{
		schema: map[string][]storage.Column{"widgets": {{Name: "id", DataType: "INTEGER"}}},
		queryFn: func(query string) ([]map[string]any, error) {
			capturedQuery = query
			return []map[string]any{{"id": 1}}, nil
		},
	}
	gen := &fakeGenerator{response: "SELECT * FROM widgets LIMIT 5"}
	client := &Client{Store: store, Gen: gen}

	result, err := client.Execute(context.Background(), Options{Prompt: "ls widgets limit=5"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if capturedQuery != "SELECT * FROM widgets LIMIT 5" {
		t.Fatalf("unexpected query: %q", capturedQuery)
	}
	if !strings.Contains(result, `"id"`) {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecuteReturnsNoValidQueryMessageWhenLLMRefusesSelect(t *testing.T) {
	store := &fakeStore{schema: map[string][]storage.Column{}}
	gen := &fakeGenerator{response: "DROP TABLE widgets"}
	client := &Client{Store: store, Gen: gen}

	result, err := client.Execute(context.Background(), Options{Prompt: "delete everything"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "The prompt did not result in a valid query." {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecuteUsesGenericModeWhenSystemPromptProvided(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{response: "a direct answer"}
	client := &Client{Store: store, Gen: gen}

	result, err := client.Execute(context.Background(), Options{Prompt: "translate this", SystemPromptTemplate: "you translate text"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "a direct answer" {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestQueryFromPromptStripsCodeFences(t *testing.T) {
	store := &fakeStore{schema: map[string][]storage.Column{"widgets": {{Name: "id", DataType: "INTEGER"}}}}
	gen := &fakeGenerator{response: "```sql\nSELECT id FROM widgets\n```"}
	client := &Client{Store: store, Gen: gen}

	query, err := client.queryFromPrompt(context.Background(), Options{Prompt: "list ids", TableName: "widgets"})
	if err != nil {
		t.Fatalf("queryFromPrompt: %v", err)
	}
	if query != "SELECT id FROM widgets" {
		t.Fatalf("unexpected query: %q", query)
	}
}
