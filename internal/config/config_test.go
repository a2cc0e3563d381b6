package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := Path(), "/custom/config/crag/config.yml"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := Path(), filepath.Join(home, ".config", "crag", "config.yml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Query.TopK != 5 || cfg.Query.MaxContextChars != 3500 {
		t.Errorf("query defaults = %+v", cfg.Query)
	}
	if cfg.LLM.Model != "mistral" || *cfg.LLM.Temperature != 0.5 || cfg.LLM.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.Index.Metric != "cosine" || !cfg.Rewrite() {
		t.Errorf("metric %q rewrite %v", cfg.Index.Metric, cfg.Rewrite())
	}
	if len(cfg.Query.ExitWords) != 2 {
		t.Errorf("ExitWords = %v", cfg.Query.ExitWords)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Provider != DefaultProvider {
		t.Errorf("Provider = %q", cfg.Embedding.Provider)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
embedding:
  provider: hashing
  dimensions: 512
index:
  metric: l2
  path: /data/stig.index
query:
  top_k: 3
  rewrite_ids: false
  exit_words: [bye]
llm:
  model: llama3
  temperature: 0
`
	os.WriteFile(path, []byte(content), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Provider != "hashing" || cfg.Embedding.Dimensions != 512 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Index.Metric != "l2" || cfg.Index.Path != "/data/stig.index" || cfg.Index.MetadataPath != DefaultMetadataPath {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Query.TopK != 3 || cfg.Rewrite() || cfg.Query.ExitWords[0] != "bye" {
		t.Errorf("query = %+v", cfg.Query)
	}
	if cfg.Query.MaxContextChars != DefaultMaxContextChars {
		t.Errorf("MaxContextChars default not applied: %d", cfg.Query.MaxContextChars)
	}
	if cfg.LLM.Model != "llama3" || *cfg.LLM.Temperature != 0 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	os.WriteFile(path, []byte("llm:\n  model: file-model\n"), 0644)

	t.Setenv(EnvLLMModel, "env-model")
	t.Setenv(EnvLLMURL, "http://llm:8080/v1")
	t.Setenv(EnvEmbedURL, "http://ollama:11434")
	t.Setenv(EnvLLMTimeout, "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Model != "env-model" || cfg.LLM.BaseURL != "http://llm:8080/v1" || cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Embedding.BaseURL != "http://ollama:11434" {
		t.Errorf("embedding base url = %q", cfg.Embedding.BaseURL)
	}

	t.Setenv(EnvLLMTimeout, "soon")
	if _, err := Load(path); err == nil {
		t.Error("expected error for bad timeout")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad provider", "embedding:\n  provider: faiss\n"},
		{"bad metric", "index:\n  metric: hamming\n"},
		{"negative top_k", "query:\n  top_k: -1\n"},
		{"bad yaml", "query: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			os.WriteFile(path, []byte(tt.content), 0644)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("CRAG_TEST_DOTENV=from-file\nCRAG_TEST_KEEP=from-file\n"), 0644)

	t.Setenv("CRAG_TEST_KEEP", "from-env")
	os.Unsetenv("CRAG_TEST_DOTENV")
	defer os.Unsetenv("CRAG_TEST_DOTENV")

	if err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("CRAG_TEST_DOTENV"); got != "from-file" {
		t.Errorf("CRAG_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("CRAG_TEST_KEEP"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestLLMAPIKey(t *testing.T) {
	cfg := Default()
	if cfg.LLMAPIKey() != "" {
		t.Error("no env configured should give empty key")
	}
	cfg.LLM.APIKeyEnv = "CRAG_TEST_LLM_KEY"
	t.Setenv("CRAG_TEST_LLM_KEY", "sk-1")
	if cfg.LLMAPIKey() != "sk-1" {
		t.Errorf("LLMAPIKey() = %q", cfg.LLMAPIKey())
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got := ExpandTilde("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandTilde() = %q", got)
	}
	if got := ExpandTilde("/abs/~/p"); got != "/abs/~/p" {
		t.Errorf("ExpandTilde() changed absolute path: %q", got)
	}
}

func TestMarshal(t *testing.T) {
	out, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), "max_context_chars: 3500") {
		t.Errorf("Marshal() output:\n%s", out)
	}
}
