package storage

import (
	"context"
	"testing"
	"time"

	"github.com/anyrag-go/ragcore/internal/ids"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedDoc(t *testing.T, s *SQLiteStore, sourceURL string, owner *string, title, content string, vector []float32, metadata []MetadataRow) string {
	t.Helper()
	id := ids.ForSourceURL(sourceURL)
	ctx := context.Background()
	if err := s.UpsertDocument(ctx, id, owner, sourceURL, title, content, time.Now().UTC()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if vector != nil {
		if err := s.ReplaceEmbedding(ctx, id, "test-model", vector); err != nil {
			t.Fatalf("embed: %v", err)
		}
	}
	if metadata != nil {
		if err := s.ReplaceMetadata(ctx, id, owner, metadata); err != nil {
			t.Fatalf("metadata: %v", err)
		}
	}
	return id
}

func TestMetadataSearchOwnershipFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownerA, ownerB := "A", "B"

	seedDoc(t, s, "http://a", &ownerA, "Doc A", "content a", nil, []MetadataRow{{Type: "KEYPHRASE", Subtype: "CONCEPT", Value: "searchable_topic"}})
	seedDoc(t, s, "http://b", &ownerB, "Doc B", "content b", nil, []MetadataRow{{Type: "KEYPHRASE", Subtype: "CONCEPT", Value: "searchable_topic"}})
	seedDoc(t, s, "http://pub", nil, "Doc Public", "content pub", nil, []MetadataRow{{Type: "KEYPHRASE", Subtype: "CONCEPT", Value: "searchable_topic"}})

	results, err := s.MetadataSearch(ctx, nil, []string{"searchable_topic"}, &ownerA, 10)
	if err != nil {
		t.Fatalf("metadata search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (A + public), got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Link == "http://b" {
			t.Fatalf("owner B's document leaked into caller A's results")
		}
	}
}

func TestVectorSearchOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDoc(t, s, "http://tesla", nil, "Tesla Prize", "about tesla", []float32{1, 0, 0, 0}, nil)
	seedDoc(t, s, "http://other", nil, "Other", "about other", []float32{0, 1, 0, 0}, nil)

	results, err := s.VectorSearch(ctx, []float32{0.99, 0.01, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Link != "http://tesla" {
		t.Fatalf("expected tesla doc ranked first, got %s", results[0].Link)
	}
}

func TestEmbeddingRejectsMisalignedBlob(t *testing.T) {
	if _, err := DeserializeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for blob length not a multiple of 4")
	}
}

func TestGetStringPropertiesForDocumentsKeysBySourceURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDoc(t, s, "http://old", nil, "Old", "content old", nil, []MetadataRow{{Type: "PROPERTY", Subtype: "published_date", Value: "2020-01-01"}})
	seedDoc(t, s, "http://new", nil, "New", "content new", nil, []MetadataRow{{Type: "PROPERTY", Subtype: "published_date", Value: "2024-06-15"}})

	properties, err := s.GetStringPropertiesForDocuments(ctx, []string{"http://old", "http://new"}, "published_date", nil)
	if err != nil {
		t.Fatalf("get string properties: %v", err)
	}
	if len(properties) != 2 {
		t.Fatalf("expected 2 properties, got %d: %+v", len(properties), properties)
	}
	if properties["http://old"] != "2020-01-01" {
		t.Fatalf("expected http://old keyed in result, got %+v", properties)
	}
	if properties["http://new"] != "2024-06-15" {
		t.Fatalf("expected http://new keyed in result, got %+v", properties)
	}

	// Passing the document's UUID instead of its source_url must not match
	// — this is the exact bug the source_url filter guards against.
	docID := ids.ForSourceURL("http://old")
	empty, err := s.GetStringPropertiesForDocuments(ctx, []string{docID}, "published_date", nil)
	if err != nil {
		t.Fatalf("get string properties by id: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no match when querying by document id rather than source_url, got %+v", empty)
	}
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := ids.ForSourceURL("http://a")

	if err := s.UpsertDocument(ctx, id, nil, "http://a", "v1", "content v1", time.Now().UTC()); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertDocument(ctx, id, nil, "http://a", "v2", "content v2", time.Now().UTC()); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE source_url = ?`, "http://a").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one document after re-ingest, got %d", count)
	}
}
