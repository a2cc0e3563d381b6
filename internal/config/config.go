// Package config loads crag settings from a YAML file, a .env file and
// CRAG_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full set of crag settings.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Query     QueryConfig     `yaml:"query" json:"query"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
}

// EmbeddingConfig selects the encoder.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" json:"provider"` // ollama, openai, hashing
	Model             string  `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKeyEnv         string  `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Dimensions        int     `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
}

// IndexConfig locates the artifact pair and fixes the metric.
type IndexConfig struct {
	Metric       string `yaml:"metric" json:"metric"` // cosine or l2
	Path         string `yaml:"path" json:"path"`
	MetadataPath string `yaml:"metadata_path" json:"metadata_path"`
}

// QueryConfig tunes retrieval and context assembly.
type QueryConfig struct {
	TopK              int      `yaml:"top_k" json:"top_k"`
	MaxContextChars   int      `yaml:"max_context_chars" json:"max_context_chars"`
	SnippetChars      int      `yaml:"snippet_chars" json:"snippet_chars"`
	EvidenceBodyChars int      `yaml:"evidence_body_chars" json:"evidence_body_chars"`
	RewriteIDs        *bool    `yaml:"rewrite_ids,omitempty" json:"rewrite_ids,omitempty"`
	ExitWords         []string `yaml:"exit_words" json:"exit_words"`
}

// LLMConfig configures the answer service.
type LLMConfig struct {
	BaseURL        string   `yaml:"base_url" json:"base_url"`
	Model          string   `yaml:"model" json:"model"`
	Temperature    *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	APIKeyEnv      string   `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// Defaults.
const (
	DefaultProvider          = "ollama"
	DefaultMetric            = "cosine"
	DefaultIndexPath         = "data/embeddings/corpus.index"
	DefaultMetadataPath      = "data/embeddings/corpus.jsonl"
	DefaultTopK              = 5
	DefaultMaxContextChars   = 3500
	DefaultSnippetChars      = 400
	DefaultEvidenceBodyChars = 1800
	DefaultEmbedTimeout      = 30
	DefaultLLMBaseURL        = "http://localhost:1234/v1"
	DefaultLLMModel          = "mistral"
	DefaultLLMTemperature    = 0.5
	DefaultLLMTimeout        = 120
)

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultProvider
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = DefaultEmbedTimeout
	}
	if c.Index.Metric == "" {
		c.Index.Metric = DefaultMetric
	}
	if c.Index.Path == "" {
		c.Index.Path = DefaultIndexPath
	}
	if c.Index.MetadataPath == "" {
		c.Index.MetadataPath = DefaultMetadataPath
	}
	if c.Query.TopK == 0 {
		c.Query.TopK = DefaultTopK
	}
	if c.Query.MaxContextChars == 0 {
		c.Query.MaxContextChars = DefaultMaxContextChars
	}
	if c.Query.SnippetChars == 0 {
		c.Query.SnippetChars = DefaultSnippetChars
	}
	if c.Query.EvidenceBodyChars == 0 {
		c.Query.EvidenceBodyChars = DefaultEvidenceBodyChars
	}
	if c.Query.RewriteIDs == nil {
		enabled := true
		c.Query.RewriteIDs = &enabled
	}
	if len(c.Query.ExitWords) == 0 {
		c.Query.ExitWords = []string{"exit", "quit"}
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}
	if c.LLM.Temperature == nil {
		temp := DefaultLLMTemperature
		c.LLM.Temperature = &temp
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = DefaultLLMTimeout
	}
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "openai", "hashing":
	default:
		return fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Index.Metric) {
	case "cosine", "l2":
	default:
		return fmt.Errorf("index.metric: must be cosine or l2, got %q", c.Index.Metric)
	}
	if c.Query.TopK <= 0 {
		return fmt.Errorf("query.top_k: must be positive, got %d", c.Query.TopK)
	}
	if c.Query.MaxContextChars <= 0 {
		return fmt.Errorf("query.max_context_chars: must be positive, got %d", c.Query.MaxContextChars)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions: must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// Rewrite reports whether CWE identifier rewriting is enabled.
func (c *Config) Rewrite() bool {
	return c.Query.RewriteIDs == nil || *c.Query.RewriteIDs
}

// EmbedTimeout returns the embedding request timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the answer request timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// EmbedAPIKey reads the embedding API key from the configured variable.
func (c *Config) EmbedAPIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// LLMAPIKey reads the answer service API key from the configured variable.
func (c *Config) LLMAPIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// ExpandTilde replaces a leading "~/" with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
