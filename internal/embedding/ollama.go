package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the sentence encoder the corpus is built with.
	DefaultModel = "all-minilm:l6-v2"

	// DefaultDimensions is the output width of all-minilm.
	DefaultDimensions = 384

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second

	apiPathTags  = "/api/tags"
	apiPathEmbed = "/api/embed"

	// maxErrorBody caps how much of an error response is quoted.
	maxErrorBody = 512
)

// OllamaProvider embeds text through a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	limiter    *rate.Limiter
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected vector width.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		p.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.client.Timeout = timeout
	}
}

// WithRateLimit caps embedding requests per second.
func WithRateLimit(perSecond float64) OllamaOption {
	return func(p *OllamaProvider) {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewOllamaProvider creates an Ollama provider with the all-minilm defaults.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    DefaultOllamaURL,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ollamaEmbedRequest struct {
	Model    string `json:"model"`
	Input    string `json:"input"`
	Truncate bool   `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// do sends a request and returns the open response for any status. A
// transport failure is ErrUnavailable. The caller closes the body.
func (p *OllamaProvider) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	return resp, nil
}

// readErrorBody returns at most maxErrorBody bytes of an error response.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(data))
}

// Embed generates an embedding for the given text. Over-long input is
// truncated to the model's context by the server.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Embedding{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := p.do(ctx, http.MethodPost, apiPathEmbed, ollamaEmbedRequest{
		Model:    p.model,
		Input:    text,
		Truncate: true,
	})
	if err != nil {
		return Embedding{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Embedding{}, fmt.Errorf("%w: %s (%s)", ErrModelNotFound, p.model, readErrorBody(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return Embedding{}, fmt.Errorf("%w: ollama returned status %d: %s", ErrUnavailable, resp.StatusCode, readErrorBody(resp.Body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Embedding{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Embeddings) != 1 {
		return Embedding{}, fmt.Errorf("expected 1 embedding, got %d", len(result.Embeddings))
	}

	vec := result.Embeddings[0]
	if len(vec) != p.dimensions {
		return Embedding{}, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(vec), p.dimensions)
	}
	return Embedding{Vector: vec}, nil
}

// ModelName returns the name of the embedding model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector width.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// models lists the names of the models the server has pulled.
func (p *OllamaProvider) models(ctx context.Context) ([]string, error) {
	resp, err := p.do(ctx, http.MethodGet, apiPathTags, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// IsAvailable checks that the Ollama server answers.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	if _, err := p.models(ctx); err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	return nil
}

// HasModel reports whether the configured model has been pulled. Untagged
// pulls are listed as "<name>:latest".
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	names, err := p.models(ctx)
	if err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	for _, name := range names {
		if name == p.model || name == p.model+":latest" {
			return true, nil
		}
	}
	return false, nil
}
