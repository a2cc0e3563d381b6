package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/cyberrag/crag/internal/console"
	"github.com/cyberrag/crag/internal/llm"
	"github.com/cyberrag/crag/internal/query"
	"github.com/spf13/cobra"
)

var (
	flagLLMURL      string
	flagLLMModel    string
	flagTemperature float64
	showContext     bool
)

func init() {
	rootCmd.AddCommand(askCmd)

	addArtifactFlags(askCmd)
	addProviderFlags(askCmd)
	addQueryFlags(askCmd)
	askCmd.Flags().StringVar(&flagLLMURL, "llm-url", "", "OpenAI-compatible chat API base URL (default from config)")
	askCmd.Flags().StringVar(&flagLLMModel, "llm-model", "", "Chat model name (default from config)")
	askCmd.Flags().Float64Var(&flagTemperature, "temperature", llm.DefaultTemperature, "Sampling temperature")
	askCmd.Flags().BoolVar(&showContext, "show-context", false, "Include the retrieved evidence in the output")
}

// AskResponse is the response for a one-shot ask.
type AskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Model    string `json:"model"`
	Context  string `json:"context,omitempty"`
	Blocks   int    `json:"blocks,omitempty"`
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer questions from retrieved evidence with an LLM",
	Long: `Retrieve evidence for a question and ask a chat model to answer from it.

With a question argument, asks once and prints the answer. Without one,
opens an interactive console. The model is told to answer only from the
retrieved context. If no evidence fits the context budget, no request is
sent. Failures talking to the model are printed as the answer and do not
end the console.

Any OpenAI-compatible chat endpoint works; the default is a local LM Studio
server at ` + llm.DefaultBaseURL + `.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)
	if cmd.Flags().Changed("llm-url") {
		cfg.LLM.BaseURL = flagLLMURL
	}
	if cmd.Flags().Changed("llm-model") {
		cfg.LLM.Model = flagLLMModel
	}
	if cmd.Flags().Changed("temperature") {
		cfg.LLM.Temperature = &flagTemperature
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := newLLMClient()
	engine, c := newEngine(ctx, query.WithAnswerer(client, cfg.LLMTimeout()))
	defer c.Close()

	if len(args) == 1 {
		return askOnce(ctx, engine, client, strings.TrimSpace(args[0]))
	}

	humanOutput = true
	opts := console.Options{
		Title:       "Cybersecurity RAG Query",
		Prompt:      ">> Ask your question (or type 'exit'): ",
		Status:      ":: Generating response ...",
		ExitWords:   cfg.Query.ExitWords,
		Interactive: stdinIsTerminal(),
		Styled:      stdoutIsTerminal(),
		Separator:   strings.Repeat("-", 80),
		Fatal:       isEncoderFailure,
	}
	if err := console.Run(ctx, os.Stdin, os.Stdout, opts, engine.Ask); err != nil {
		return consoleExit(err)
	}
	return nil
}

func newLLMClient() *llm.Client {
	return llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		APIKey:      cfg.LLMAPIKey(),
		Timeout:     cfg.LLMTimeout(),
	})
}

func askOnce(ctx context.Context, engine *query.Engine, client *llm.Client, question string) error {
	if question == "" {
		exitWithError(ExitError, "Question cannot be empty")
	}

	answer, ev, err := engine.AskWithEvidence(ctx, question)
	if err != nil {
		exitWithErr(err, "answering")
	}

	resp := AskResponse{Question: question, Answer: answer, Model: client.Model()}
	if showContext && ev != nil {
		resp.Context = ev.Text
		resp.Blocks = ev.Blocks
	}

	if humanOutput {
		if resp.Context != "" {
			fmt.Printf("Context (%d blocks):\n\n%s\n\n%s\n\n", resp.Blocks, resp.Context, strings.Repeat("-", 80))
		}
		fmt.Println(answer)
		return nil
	}
	outputJSON(resp)
	return nil
}
