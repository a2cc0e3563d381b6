package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors returned by embedding providers.
var (
	// ErrUnavailable means the embedding backend cannot be reached or loaded.
	// Builds and queries treat it as fatal.
	ErrUnavailable = errors.New("embedding backend unavailable")

	// ErrModelNotFound means the backend is up but does not serve the model.
	ErrModelNotFound = errors.New("embedding model not found")
)

// Provider generates embeddings from text.
type Provider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}

// AvailabilityChecker is implemented by providers backed by a remote service.
type AvailabilityChecker interface {
	// IsAvailable checks if the backend is running and accessible.
	IsAvailable(ctx context.Context) error
}

// CheckAvailable asks p whether its service is reachable. Local providers are
// always available.
func CheckAvailable(ctx context.Context, p Provider) error {
	if ac, ok := p.(AvailabilityChecker); ok {
		if err := ac.IsAvailable(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

// Encode embeds texts one at a time, preserving length and order. Each text
// is embedded on its own so a vector never depends on what else is in the
// batch. The first failure aborts the whole call; callers never receive a
// partially embedded slice.
func Encode(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		if emb.Dimensions() != p.Dimensions() {
			return nil, fmt.Errorf("embedding text %d: got %d dimensions, want %d", i, emb.Dimensions(), p.Dimensions())
		}
		out[i] = emb.Vector
	}
	return out, nil
}

// Provider names accepted by New.
const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Config selects and configures a provider.
type Config struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// New builds the provider described by cfg. Zero-valued fields fall back to
// each provider's defaults.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		var opts []OllamaOption
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		if cfg.Dimensions > 0 {
			opts = append(opts, WithDimensions(cfg.Dimensions))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.RequestsPerSecond > 0 {
			opts = append(opts, WithRateLimit(cfg.RequestsPerSecond))
		}
		return NewOllamaProvider(opts...), nil

	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})

	case ProviderHashing:
		return NewHashingProvider(cfg.Dimensions), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: %s, %s, %s)",
			cfg.Provider, ProviderOllama, ProviderOpenAI, ProviderHashing)
	}
}
