package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anyrag-go/ragcore/internal/ragerr"
)

// OpenAIProvider wraps github.com/sashabaranov/go-openai behind the
// Provider interface, allowing any OpenAI-compatible endpoint (OpenAI
// itself, or a local/compatible gateway) to stand in for the Gemini
// provider without the rest of the module noticing.
type OpenAIProvider struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

// NewOpenAIProvider constructs an OpenAIProvider. baseURL may be empty to
// use the default OpenAI API endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", ragerr.ErrConfiguration)
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(cfg),
		model:          model,
		embeddingModel: string(openai.SmallEmbedding3),
	}, nil
}

// Generate implements Provider via the chat completion API, with the system
// prompt in its own message (unlike Gemini, OpenAI's chat API has a native
// system-role slot).
func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai generate: %v", ragerr.ErrLLM, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from openai", ragerr.ErrLLM)
	}
	return resp.Choices[0].Message.Content, nil
}

// EmbedBatch implements Provider via a single batched embeddings call,
// preserving input order as the API guarantees.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embed: %v", ragerr.ErrEmbedding, err)
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
