package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// GeminiProvider wraps google.golang.org/genai behind the Provider
// interface. Grounded on internal/llm/llm.go's Client: a single *genai.Client
// held for the process lifetime, thin per-call content construction.
type GeminiProvider struct {
	client              *genai.Client
	model               string
	embeddingModel      string
	embeddingDimensions int32
}

// NewGeminiProvider constructs a GeminiProvider. apiKey must be non-empty;
// model and embeddingModel fall back to sensible defaults when empty.
func NewGeminiProvider(ctx context.Context, apiKey, model, embeddingModel string, embeddingDimensions int32) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ragerr.ErrConfiguration)
	}
	if model == "" {
		model = "gemini-flash-lite-latest"
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}
	if embeddingDimensions == 0 {
		embeddingDimensions = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: creating gemini client: %w", err)
	}

	return &GeminiProvider{
		client:              client,
		model:               model,
		embeddingModel:      embeddingModel,
		embeddingDimensions: embeddingDimensions,
	}, nil
}

// Generate implements Provider. Gemini has no distinct system-prompt slot in
// the simple content API the teacher uses, so system and user prompts are
// concatenated with a separating blank line, matching the single-Content
// shape generateContent builds.
func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt := userPrompt
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + userPrompt
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", ragerr.ErrLLM, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response from gemini", ragerr.ErrLLM)
	}
	return text, nil
}

// EmbedBatch implements Provider, calling EmbedContent once per text. The
// genai SDK's batch embedding endpoint takes one Content per input; results
// preserve input order because each vector is stored at its text's index.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	dims := p.embeddingDimensions
	config := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		contents := []*genai.Content{{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}}

		resp, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("%w: gemini embed: %v", ragerr.ErrEmbedding, err)
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return nil, fmt.Errorf("%w: no embedding values returned", ragerr.ErrEmbedding)
		}
		vectors[i] = resp.Embeddings[0].Values
	}
	return vectors, nil
}
