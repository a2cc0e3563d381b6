package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/cyberrag/crag/internal/corpus"
	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/spf13/cobra"
)

var (
	noProgress bool
	buildKind  string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	addArtifactFlags(buildCmd)
	addProviderFlags(buildCmd)
	buildCmd.Flags().StringVar(&buildKind, "kind", "", "Source kind for CSV input: stig or cwe (detected from the header when omitted)")
	buildCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
}

// BuildResponse is the response for the build command.
type BuildResponse struct {
	Status            string  `json:"status"`
	BuildID           string  `json:"build_id"`
	RecordsRead       int     `json:"records_read"`
	RecordsIndexed    int     `json:"records_indexed"`
	RecordsSkipped    int     `json:"records_skipped"`
	SkippedReason     string  `json:"skipped_reason,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Model             string  `json:"model"`
	Metric            string  `json:"metric"`
	Dimensions        int     `json:"dimensions"`
	IndexPath         string  `json:"index_path"`
	IndexSizeBytes    int64   `json:"index_size_bytes"`
	MetadataPath      string  `json:"metadata_path"`
	MetadataSizeBytes int64   `json:"metadata_size_bytes"`
}

var buildCmd = &cobra.Command{
	Use:   "build <input>...",
	Short: "Build the index and metadata artifacts",
	Long: `Build the vector index and its metadata from corpus files.

Inputs are JSONL files as written by the STIG and CWE converters (or by
'crag convert'), or CSV exports ending in .csv. Use "-" to read JSONL from
stdin. Records without any descriptive text are skipped; malformed lines,
missing ids and duplicate ids abort the build before anything is written.

The metadata path decides its format: .db or .sqlite writes SQLite,
anything else writes JSONL.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var kind record.SourceKind
	if buildKind != "" {
		k, err := record.ParseSourceKind(buildKind)
		if err != nil {
			exitWithError(ExitError, "--kind: %v", err)
		}
		kind = k
	}

	recs, inStats, err := corpus.ReadFiles(args, kind)
	if err != nil {
		exitWithErr(err, "reading input")
	}
	logger.Info("input read",
		slog.Int("lines", inStats.Read),
		slog.Int("records", inStats.Kept),
		slog.Int("skipped", inStats.Skipped))

	provider, err := newProvider(ctx)
	if err != nil {
		exitWithErr(err, "embedding provider")
	}

	showProgress := humanOutput && !noProgress
	opts := corpus.BuildOptions{
		Records:      recs,
		Provider:     provider,
		Metric:       configuredMetric(),
		IndexPath:    cfg.Index.Path,
		MetadataPath: cfg.Index.MetadataPath,
		Logger:       logger,
	}
	if showProgress {
		opts.Progress = semantic.ProgressFunc(printProgress)
		fmt.Fprintf(os.Stderr, "Building index with %s...\n", provider.ModelName())
	}

	result, err := corpus.Build(ctx, opts)

	// Clear progress line if we were showing progress
	if showProgress {
		fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 50))
	}
	if err != nil {
		exitWithErr(err, "building index")
	}

	stats := result.Stats
	skipped := inStats.Skipped + stats.RecordsSkipped
	if humanOutput {
		fmt.Printf("\nBuild complete:\n")
		fmt.Printf("  Build ID: %s\n", result.BuildID)
		fmt.Printf("  Records indexed: %d\n", stats.RecordsIndexed)
		fmt.Printf("  Records skipped: %d (no descriptive text)\n", skipped)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		fmt.Printf("  Model: %s (%d dimensions)\n", result.ModelName, result.Dimensions)
		fmt.Printf("  Metric: %s\n", result.Metric)
		fmt.Printf("  Index: %s (%s)\n", result.IndexPath, formatBytes(stats.IndexSizeBytes))
		fmt.Printf("  Metadata: %s (%s)\n", result.MetadataPath, formatBytes(result.MetadataSizeBytes))
		return nil
	}

	outputJSON(BuildResponse{
		Status:            "complete",
		BuildID:           result.BuildID,
		RecordsRead:       inStats.Read,
		RecordsIndexed:    stats.RecordsIndexed,
		RecordsSkipped:    skipped,
		SkippedReason:     stats.SkippedReason,
		DurationSeconds:   stats.Duration.Seconds(),
		Model:             result.ModelName,
		Metric:            string(result.Metric),
		Dimensions:        result.Dimensions,
		IndexPath:         result.IndexPath,
		IndexSizeBytes:    stats.IndexSizeBytes,
		MetadataPath:      result.MetadataPath,
		MetadataSizeBytes: result.MetadataSizeBytes,
	})
	return nil
}

// printProgress prints a progress bar to stderr.
func printProgress(current, total int) {
	fmt.Fprint(os.Stderr, progressLine(current, total))
}

// progressLine renders a 30-column progress bar, or "" when total is 0.
func progressLine(current, total int) string {
	if total == 0 {
		return ""
	}
	pct := float64(current) / float64(total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * float64(current) / float64(total))
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteByte('=')
		case i == filled:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	return fmt.Sprintf("\r[%s] %d/%d (%.0f%%)", bar.String(), current, total, pct)
}
