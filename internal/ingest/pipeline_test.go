package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/anyrag-go/ragcore/internal/storage"
)

type fakeStore struct {
	documents map[string]string
	metadata  map[string][]storage.MetadataRow
	embedded  map[string][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: make(map[string]string),
		metadata:  make(map[string][]storage.MetadataRow),
		embedded:  make(map[string][]float32),
	}
}

func (s *fakeStore) UpsertDocument(ctx context.Context, id string, owner *string, sourceURL, title, content string, createdAt time.Time) error {
	s.documents[id] = content
	return nil
}

func (s *fakeStore) ReplaceEmbedding(ctx context.Context, documentID, modelName string, vector []float32) error {
	s.embedded[documentID] = vector
	return nil
}

func (s *fakeStore) ReplaceMetadata(ctx context.Context, documentID string, owner *string, rows []storage.MetadataRow) error {
	s.metadata[documentID] = rows
	return nil
}

type fakeGenerator struct {
	response string
	err      error
}

func (g fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.response, g.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

const validRestructured = `sections:
  - title: Setup
    faqs:
      - question: How do I install it?
        answer: Run the installer.
  - title: Usage
    faqs:
      - question: How do I run it?
        answer: Invoke the binary.
`

func TestFinishPersistsOneDocumentPerSection(t *testing.T) {
	store := newFakeStore()
	opts := Options{
		Store:          store,
		Gen:            fakeGenerator{response: validRestructured},
		Embedder:       fakeEmbedder{},
		EmbeddingModel: "test-model",
	}

	result, err := Finish(context.Background(), opts, "https://example.com/doc", nil, "raw extracted text")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.DocumentsAdded != 2 {
		t.Fatalf("expected 2 documents added, got %+v", result)
	}
	if len(store.documents) != 2 {
		t.Fatalf("expected 2 persisted documents, got %d", len(store.documents))
	}
	for _, id := range result.DocumentIDs {
		if _, ok := store.embedded[id]; !ok {
			t.Fatalf("expected document %s to be embedded", id)
		}
		if _, ok := store.metadata[id]; !ok {
			t.Fatalf("expected document %s to have metadata extracted", id)
		}
	}
}

func TestFinishFallsBackToSingleDocumentOnUnparsableYAML(t *testing.T) {
	store := newFakeStore()
	opts := Options{
		Store:    store,
		Gen:      fakeGenerator{response: "not: [valid yaml"},
		Embedder: fakeEmbedder{},
	}

	result, err := Finish(context.Background(), opts, "https://example.com/bad", nil, "raw text")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.DocumentsAdded != 1 {
		t.Fatalf("expected fallback single document, got %+v", result)
	}
}

func TestFinishIsNoOpOnEmptyRestructure(t *testing.T) {
	store := newFakeStore()
	opts := Options{
		Store: store,
		Gen:   fakeGenerator{response: ""},
	}

	result, err := Finish(context.Background(), opts, "https://example.com/empty", nil, "raw text")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.DocumentsAdded != 0 {
		t.Fatalf("expected no documents added, got %+v", result)
	}
}

func TestFinishIsNoOpOnEmptyRawText(t *testing.T) {
	store := newFakeStore()
	opts := Options{Store: store, Gen: fakeGenerator{response: validRestructured}}

	result, err := Finish(context.Background(), opts, "https://example.com/blank", nil, "   ")
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if result.DocumentsAdded != 0 {
		t.Fatalf("expected no documents added for blank input, got %+v", result)
	}
}
