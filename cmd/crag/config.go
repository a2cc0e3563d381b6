package main

import (
	"fmt"
	"os"

	"github.com/cyberrag/crag/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
}

// ConfigPathResponse is the response for config path.
type ConfigPathResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after the config file, .env, CRAG_* environment
variables and defaults have been applied. Prints YAML with --human and JSON
otherwise.

Usage:
  crag config                 # Show effective config
  crag config path            # Show which config file is read

Environment:
  ` + config.EnvEmbedProvider + `, ` + config.EnvEmbedURL + `, ` + config.EnvEmbedModel + `,
  ` + config.EnvIndexMetric + `, ` + config.EnvLLMURL + `, ` + config.EnvLLMModel + `, ` + config.EnvLLMTimeout,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	if !humanOutput {
		outputJSON(cfg)
		return nil
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		exitWithError(ExitError, "rendering config: %v", err)
	}
	fmt.Print(string(data))
	return nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		path = config.ExpandTilde(path)
		_, err := os.Stat(path)
		exists := err == nil

		if humanOutput {
			if exists {
				outputHuman("%s\n", path)
			} else {
				outputHuman("%s (not found, using defaults)\n", path)
			}
			return nil
		}
		outputJSON(ConfigPathResponse{Path: path, Exists: exists})
		return nil
	},
}
