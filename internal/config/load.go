package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "crag"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
)

// Environment variables that override file settings.
const (
	EnvEmbedProvider = "CRAG_EMBED_PROVIDER"
	EnvEmbedURL      = "CRAG_EMBED_URL"
	EnvEmbedModel    = "CRAG_EMBED_MODEL"
	EnvIndexMetric   = "CRAG_INDEX_METRIC"
	EnvLLMURL        = "CRAG_LLM_URL"
	EnvLLMModel      = "CRAG_LLM_MODEL"
	EnvLLMTimeout    = "CRAG_LLM_TIMEOUT"
)

// Path returns the default config file path.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/crag/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// LoadDotEnv loads variables from the given .env files (default ./.env)
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config at path (or Path() when empty), applies environment
// overrides and defaults, and validates the result. A missing default file
// is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = Path()
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(ExpandTilde(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.Index.Path = ExpandTilde(cfg.Index.Path)
	cfg.Index.MetadataPath = ExpandTilde(cfg.Index.MetadataPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file settings with CRAG_* variables.
func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setString(EnvEmbedProvider, &cfg.Embedding.Provider)
	setString(EnvEmbedURL, &cfg.Embedding.BaseURL)
	setString(EnvEmbedModel, &cfg.Embedding.Model)
	setString(EnvIndexMetric, &cfg.Index.Metric)
	setString(EnvLLMURL, &cfg.LLM.BaseURL)
	setString(EnvLLMModel, &cfg.LLM.Model)

	if v := os.Getenv(EnvLLMTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: expected positive seconds, got %q", EnvLLMTimeout, v)
		}
		cfg.LLM.TimeoutSeconds = n
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
