// Package ai abstracts LLM generation and embedding behind a uniform
// interface so the rest of the core never depends on a specific backend
// SDK. Concrete providers are a closed set of tagged variants (Gemini,
// OpenAI-compatible), per the "tagged variants replace source polymorphism"
// design note.
package ai

import "context"

// Provider is the uniform surface every AI backend implements: text
// generation from a system/user prompt pair, and batch text embedding.
type Provider interface {
	// Generate produces text from a system prompt and a user prompt. All
	// prompt templates passed here may contain literal placeholders the
	// caller has already substituted; Generate does no templating itself.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// EmbedBatch returns one embedding vector per input text, preserving
	// order. Implementations return ragerr.ErrEmbedding on failure.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the narrow interface components that only need text
// generation should depend on, following the teacher's
// categorization.LLMClient pattern of depending on the smallest interface a
// consumer actually needs rather than the full Provider.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder is the narrow interface components that only need embeddings
// should depend on.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
