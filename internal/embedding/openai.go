package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultOllamaModel is used when the ollama provider has no explicit model.
const DefaultOllamaModel = "nomic-embed-text"

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions requests shortened vectors from models that support it
	// (text-embedding-3-*). Zero leaves the model's native size.
	Dimensions int
	// MaxTokens truncates each text before sending. Zero disables truncation.
	MaxTokens int
}

// OpenAIProvider embeds text through the OpenAI embeddings API, or any
// server that speaks it (Ollama, vLLM, LiteLLM).
type OpenAIProvider struct {
	client     *openai.Client
	truncator  *Truncator
	model      string
	dimensions int
}

// NewOpenAIProvider creates a provider for cfg.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	p := &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
	if strings.HasPrefix(cfg.Model, "text-embedding-3") {
		p.dimensions = cfg.Dimensions
	}
	if cfg.MaxTokens > 0 {
		t, err := NewTruncator(cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		p.truncator = t
	}
	return p, nil
}

// Embed calls the embeddings endpoint for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	input := text
	if p.truncator != nil {
		truncated, err := p.truncator.Truncate(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		input = truncated
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{input},
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %w", ErrUpstream, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai embeddings: no embedding data", ErrUpstream)
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the requested dimension, or 0 when the model decides.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Model returns the embedding model name.
func (p *OpenAIProvider) Model() string { return p.model }
