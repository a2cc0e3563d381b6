package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cyberrag/crag/internal/config"
	"github.com/cyberrag/crag/internal/corpus"
	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/query"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Flags shared by the commands that touch the artifact pair. Each command
// registers the subset it needs; applyOverrides copies the ones the user set
// into cfg.
var (
	flagIndexPath    string
	flagMetadataPath string
	flagMetric       string
	flagProvider     string
	flagEmbedModel   string
	flagEmbedURL     string
	flagDimensions   int
	flagTopK         int
	flagNoRewrite    bool
)

func addArtifactFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagIndexPath, "index", "", "Index artifact path (default from config)")
	cmd.Flags().StringVar(&flagMetadataPath, "metadata", "", "Metadata artifact path, .jsonl or .db (default from config)")
	cmd.Flags().StringVar(&flagMetric, "metric", "", "Distance metric: cosine or l2 (default from config)")
}

func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "Embedding provider: ollama, openai or hashing")
	cmd.Flags().StringVar(&flagEmbedModel, "embed-model", "", "Embedding model name")
	cmd.Flags().StringVar(&flagEmbedURL, "embed-url", "", "Embedding server base URL")
	cmd.Flags().IntVar(&flagDimensions, "dimensions", 0, "Embedding dimensions")
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&flagTopK, "top-k", "k", 0, "Number of results to retrieve (default from config)")
	cmd.Flags().BoolVar(&flagNoRewrite, "no-rewrite", false, "Do not append CWE identifiers to the retrieval query")
}

// applyOverrides copies explicitly set flags into cfg and revalidates it.
func applyOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	set := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	if set("index") {
		cfg.Index.Path = config.ExpandTilde(flagIndexPath)
	}
	if set("metadata") {
		cfg.Index.MetadataPath = config.ExpandTilde(flagMetadataPath)
	}
	if set("metric") {
		cfg.Index.Metric = flagMetric
	}
	if set("provider") {
		cfg.Embedding.Provider = flagProvider
	}
	if set("embed-model") {
		cfg.Embedding.Model = flagEmbedModel
	}
	if set("embed-url") {
		cfg.Embedding.BaseURL = flagEmbedURL
	}
	if set("dimensions") {
		cfg.Embedding.Dimensions = flagDimensions
	}
	if set("top-k") {
		cfg.Query.TopK = flagTopK
	}
	if set("no-rewrite") && flagNoRewrite {
		off := false
		cfg.Query.RewriteIDs = &off
	}

	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "invalid settings: %v", err)
	}
}

// configuredMetric parses cfg.Index.Metric. Validate has already accepted it.
func configuredMetric() semantic.Metric {
	m, err := semantic.ParseMetric(cfg.Index.Metric)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return m
}

// modelChecker is implemented by providers that can list served models.
type modelChecker interface {
	HasModel(ctx context.Context) (bool, error)
}

// newProvider builds the configured embedding provider and, for remote
// backends, checks that the server is up and serves the model.
func newProvider(ctx context.Context) (embedding.Provider, error) {
	provider, err := embedding.New(embedding.Config{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.EmbedAPIKey(),
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.EmbedTimeout(),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}

	if err := embedding.CheckAvailable(ctx, provider); err != nil {
		return nil, err
	}
	if mc, ok := provider.(modelChecker); ok {
		has, err := mc.HasModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, err)
		}
		if !has {
			return nil, fmt.Errorf("%w: %s", embedding.ErrModelNotFound, provider.ModelName())
		}
	}

	logger.Debug("embedding provider ready",
		slog.String("provider", cfg.Embedding.Provider),
		slog.String("model", provider.ModelName()),
		slog.Int("dimensions", provider.Dimensions()))
	return provider, nil
}

// openCorpus opens the configured artifact pair for provider. Any mismatch
// between the pair, the configured metric or the provider's model exits.
func openCorpus(provider embedding.Provider) *corpus.Corpus {
	opts := corpus.OpenOptions{
		IndexPath:    cfg.Index.Path,
		MetadataPath: cfg.Index.MetadataPath,
		Metric:       configuredMetric(),
	}
	if provider != nil {
		opts.ModelName = provider.ModelName()
	}
	c, err := corpus.Open(opts)
	if err != nil {
		exitWithErr(err, "opening corpus")
	}
	return c
}

// newEngine opens the corpus and wires the query engine from cfg.
func newEngine(ctx context.Context, extra ...query.Option) (*query.Engine, *corpus.Corpus) {
	provider, err := newProvider(ctx)
	if err != nil {
		exitWithErr(err, "embedding provider")
	}
	c := openCorpus(provider)

	opts := []query.Option{
		query.WithTopK(cfg.Query.TopK),
		query.WithMaxContextChars(cfg.Query.MaxContextChars),
		query.WithSnippetChars(cfg.Query.SnippetChars),
		query.WithEvidenceBodyChars(cfg.Query.EvidenceBodyChars),
		query.WithRewrite(cfg.Rewrite()),
		query.WithLogger(logger),
	}
	opts = append(opts, extra...)

	engine, err := query.NewEngine(provider, c.Index, c.Store, opts...)
	if err != nil {
		c.Close()
		exitWithErr(err, "creating query engine")
	}
	logger.Info("corpus opened",
		slog.Int("records", c.Index.Size()),
		slog.String("metric", string(c.Index.Metric)),
		slog.String("build_id", c.Index.BuildID))
	return engine, c
}

// stdinIsTerminal reports whether the console should show prompts.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// stdoutIsTerminal reports whether output may carry terminal styling.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
