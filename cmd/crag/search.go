package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyberrag/crag/internal/query"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(searchCmd)

	addArtifactFlags(searchCmd)
	addProviderFlags(searchCmd)
	addQueryFlags(searchCmd)
}

// SearchHit is one entry in the search response.
type SearchHit struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	SourceKind string  `json:"source_kind"`
	Severity   string  `json:"severity,omitempty"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query          string      `json:"query"`
	RetrievalQuery string      `json:"retrieval_query"`
	Metric         string      `json:"metric"`
	ScoreLabel     string      `json:"score_label"`
	Results        []SearchHit `json:"results"`
	Total          int         `json:"total"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one search against the index",
	Long: `Search the index once and print the results.

Scores are similarities (higher is better) for cosine indexes and squared
distances (lower is better) for l2 indexes. CWE identifiers in the query are
appended to the retrieval text unless --no-rewrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)
	ctx := context.Background()

	text := strings.TrimSpace(args[0])
	if text == "" {
		exitWithError(ExitError, "Search query cannot be empty")
	}

	engine, c := newEngine(ctx)
	defer c.Close()

	result, err := engine.Search(ctx, text, engine.TopK())
	if err != nil {
		exitWithErr(err, "searching")
	}

	if humanOutput {
		fmt.Print(query.FormatDisplay(result, cfg.Query.SnippetChars))
		return nil
	}
	outputJSON(newSearchResponse(result))
	return nil
}

func newSearchResponse(result *query.Result) SearchResponse {
	hits := make([]SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, SearchHit{
			Rank:       h.Rank,
			ID:         h.Record.ID,
			Title:      h.Record.DisplayTitle(),
			Source:     h.Record.SourceLabel(),
			SourceKind: string(h.Record.SourceKind),
			Severity:   h.Record.Severity,
			Score:      h.Score,
			Text:       h.Record.BodyText,
		})
	}
	return SearchResponse{
		Query:          result.Query,
		RetrievalQuery: result.RetrievalQuery,
		Metric:         string(result.Metric),
		ScoreLabel:     query.ScoreLabel(result.Metric),
		Results:        hits,
		Total:          len(hits),
	}
}
