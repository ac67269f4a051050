package metadata

import (
	"context"
	"testing"

	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

type fakeStore struct {
	documentID string
	owner      *string
	rows       []storage.MetadataRow
}

func (f *fakeStore) ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error {
	f.documentID = documentID
	f.owner = owner
	f.rows = rows
	return nil
}

func TestExtractAndStoreParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n[{\"type\":\"CATEGORY\",\"subtype\":\"\",\"value\":\"Tech\"},{\"type\":\"entity\",\"subtype\":\"PRODUCT\",\"value\":\"WidgetPro\"}]\n```"}
	store := &fakeStore{}

	if _, err := ExtractAndStore(context.Background(), gen, store, "doc-1", nil, "content", ""); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected 2 facets stored, got %d", len(store.rows))
	}
	if store.rows[1].Type != "ENTITY" {
		t.Fatalf("expected type normalized to ENTITY, got %s", store.rows[1].Type)
	}
}

func TestExtractAndStoreCapsCategoryToOne(t *testing.T) {
	gen := &fakeGenerator{response: `[{"type":"CATEGORY","value":"A"},{"type":"CATEGORY","value":"B"}]`}
	store := &fakeStore{}

	if _, err := ExtractAndStore(context.Background(), gen, store, "doc-1", nil, "content", ""); err != nil {
		t.Fatalf("extract: %v", err)
	}
	count := 0
	for _, r := range store.rows {
		if r.Type == "CATEGORY" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected at most 1 CATEGORY row, got %d", count)
	}
}

func TestExtractAndStoreReturnsErrorOnBadJSON(t *testing.T) {
	gen := &fakeGenerator{response: "not json"}
	store := &fakeStore{}

	if _, err := ExtractAndStore(context.Background(), gen, store, "doc-1", nil, "content", ""); err == nil {
		t.Fatalf("expected parse error")
	}
}
