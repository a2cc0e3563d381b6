// Package main provides the crag CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cyberrag/crag/internal/config"
	"github.com/cyberrag/crag/internal/logging"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

var (
	configPath string
	verbose    bool
	quiet      bool
	logFormat  string
)

// cfg and logger are populated by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "crag",
	Short: "Retrieval over STIG and CWE guidance",
	Long: `crag builds a vector index over security checklist items (STIG) and
weakness entries (CWE), then answers questions against it.

'crag build' embeds the corpus and writes an index plus a metadata file that
must always be used together. 'crag query' opens an interactive search
console and 'crag ask' passes the retrieved evidence to a local LLM.

Non-interactive commands output JSON by default; pass --human for text.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/crag/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")
	rootCmd.Version = Version
}

// setup loads .env, the config file and the logger. Config errors exit with
// ExitConfigError.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	logger, err = logging.New(os.Stderr, logging.Options{Verbose: verbose, Quiet: quiet, Format: logFormat})
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	if err := config.LoadDotEnv(); err != nil {
		exitWithError(ExitConfigError, "loading .env: %v", err)
	}

	cfg, err = config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	logger.Debug("config loaded",
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("metric", cfg.Index.Metric),
		slog.String("index", cfg.Index.Path))
	return nil
}
