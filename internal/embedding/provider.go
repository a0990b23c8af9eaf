// Package embedding provides fingerprint providers that turn text into
// fixed-length vectors, plus validation and caching around them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/thebtf/feeddedup/internal/config"
	"github.com/thebtf/feeddedup/pkg/similarity"
)

var (
	// ErrUpstream marks a failure of the fingerprint provider.
	ErrUpstream = errors.New("fingerprint provider failed")
	// ErrInvalidVector marks a vector that breaks the provider contract.
	ErrInvalidVector = errors.New("invalid fingerprint vector")
)

// Provider maps text to a fixed-length fingerprint vector.
type Provider interface {
	// Embed returns the fingerprint of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of every vector Embed produces,
	// or 0 if the provider does not know it up front.
	Dimensions() int

	// Model identifies the model behind the provider. Used in cache keys.
	Model() string
}

// Validate checks vec against the provider contract: the expected dimension
// (when dim > 0), finite components and non-zero magnitude.
// The returned error wraps both ErrUpstream and ErrInvalidVector.
func Validate(vec []float32, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %w: empty vector", ErrUpstream, ErrInvalidVector)
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: %w: dimension %d, expected %d", ErrUpstream, ErrInvalidVector, len(vec), dim)
	}
	for i, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %w: non-finite component at %d", ErrUpstream, ErrInvalidVector, i)
		}
	}
	if similarity.Magnitude(vec) == 0 {
		return fmt.Errorf("%w: %w: zero magnitude", ErrUpstream, ErrInvalidVector)
	}
	return nil
}

// New builds the provider selected by cfg.Provider, wrapped in a cache.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "hashing":
		p = NewHashingProvider(cfg.EmbeddingDimensions)

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires FEEDDEDUP_API_KEY")
		}
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
			MaxTokens:  cfg.MaxTokens,
		})

	case "ollama":
		// Ollama speaks the OpenAI embeddings API under /v1.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = strings.TrimRight(baseURL, "/") + "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		model := cfg.EmbeddingModel
		if model == "" || model == config.DefaultModel {
			model = DefaultOllamaModel
		}
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   baseURL,
			Model:     model,
			MaxTokens: cfg.MaxTokens,
		})

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires FEEDDEDUP_API_KEY")
		}
		p, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.EmbeddingModel)

	default:
		return nil, fmt.Errorf("unsupported fingerprint provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	var cache Cache
	if cfg.RedisURL != "" {
		cache = NewRedisCache(cfg.RedisURL, 0)
	} else {
		cache = NewMemoryCache(cfg.CacheSize)
	}
	return NewCachedProvider(p, cache), nil
}
