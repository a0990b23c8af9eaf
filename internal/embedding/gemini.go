package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thebtf/feeddedup/internal/config"
)

// DefaultGeminiModel is used when the gemini provider has no explicit model.
const DefaultGeminiModel = "text-embedding-004"

// GeminiProvider embeds text with a Google Gemini embedding model.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini provider. An empty model, or the OpenAI
// default, selects DefaultGeminiModel.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" || model == config.DefaultModel {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Embed returns the Gemini embedding of text.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := p.client.EmbeddingModel(p.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embeddings: %w", ErrUpstream, err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("%w: gemini embeddings: no embedding values", ErrUpstream)
	}
	return res.Embedding.Values, nil
}

// Dimensions is unknown up front for Gemini models.
func (p *GeminiProvider) Dimensions() int { return 0 }

// Model returns the embedding model name.
func (p *GeminiProvider) Model() string { return p.model }

// Close releases the underlying client.
func (p *GeminiProvider) Close() error { return p.client.Close() }
