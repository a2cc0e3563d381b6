package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/cyberrag/crag/internal/console"
	"github.com/cyberrag/crag/internal/embedding"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(queryCmd)

	addArtifactFlags(queryCmd)
	addProviderFlags(queryCmd)
	addQueryFlags(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Interactive search console",
	Long: `Open an interactive console that searches the index for each question.

Each answer lists the top results with title, source and score. The best
match is shown in full and the rest as snippets. Type 'exit' or 'quit' (or
send EOF) to leave. Questions are read one per line, so input can also be
piped in.

The console always prints text; --human has no effect here.`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)
	humanOutput = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, c := newEngine(ctx)
	defer c.Close()

	opts := console.Options{
		Title:       "Cybersecurity Search Console",
		Prompt:      ">> Enter your cybersecurity question (or type 'exit'): ",
		Status:      ":: Searching index ...",
		ExitWords:   cfg.Query.ExitWords,
		Interactive: stdinIsTerminal(),
		Styled:      stdoutIsTerminal(),
		Fatal:       isEncoderFailure,
	}
	if err := console.Run(ctx, os.Stdin, os.Stdout, opts, engine.HandleQuery); err != nil {
		return consoleExit(err)
	}
	return nil
}

// isEncoderFailure reports errors that end a console session: without the
// encoder no later question can be answered either.
func isEncoderFailure(err error) bool {
	return errors.Is(err, embedding.ErrUnavailable) || errors.Is(err, embedding.ErrModelNotFound)
}

// consoleExit turns the error that ended a console session into an exit.
// Ctrl-C is a normal way out.
func consoleExit(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	exitWithErr(err, "console")
	return nil
}
