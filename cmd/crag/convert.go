package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cyberrag/crag/internal/corpus"
	"github.com/cyberrag/crag/internal/record"
	"github.com/spf13/cobra"
)

var (
	convertOutput string
	convertKind   string
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "-", "Output JSONL path (- for stdout)")
	convertCmd.Flags().StringVar(&convertKind, "kind", "", "Source kind for CSV input: stig or cwe (detected from the header when omitted)")
}

// ConvertResponse is the response for convert when writing to a file.
type ConvertResponse struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Read    int    `json:"read"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>...",
	Short: "Convert STIG/CWE exports to canonical JSONL",
	Long: `Convert checklist and weakness exports into canonical JSONL records.

Accepts the same inputs as 'crag build': converter JSONL, STIG CSV and CWE
CSV. Each output line has id, source_kind, title, body_text and severity.
Records without descriptive text are dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	var kind record.SourceKind
	if convertKind != "" {
		k, err := record.ParseSourceKind(convertKind)
		if err != nil {
			exitWithError(ExitError, "--kind: %v", err)
		}
		kind = k
	}

	recs, stats, err := corpus.ReadFiles(args, kind)
	if err != nil {
		exitWithErr(err, "reading input")
	}

	if convertOutput == "-" || convertOutput == "" {
		if err := writeRecords(os.Stdout, recs); err != nil {
			exitWithError(ExitError, "writing records: %v", err)
		}
		return nil
	}

	if err := writeRecordsFile(convertOutput, recs); err != nil {
		exitWithError(ExitError, "writing %s: %v", convertOutput, err)
	}
	logger.Info("records converted",
		slog.String("path", convertOutput),
		slog.Int("written", len(recs)),
		slog.Int("skipped", stats.Skipped))

	if humanOutput {
		outputHuman("Wrote %d records to %s (%d skipped, no descriptive text)\n", len(recs), convertOutput, stats.Skipped)
		return nil
	}
	outputJSON(ConvertResponse{
		Status:  "complete",
		Path:    convertOutput,
		Read:    stats.Read,
		Written: len(recs),
		Skipped: stats.Skipped,
	})
	return nil
}

// writeRecords writes one canonical record per line.
func writeRecords(w io.Writer, recs []record.CanonicalRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding %s: %w", rec.ID, err)
		}
	}
	return bw.Flush()
}

// writeRecordsFile writes recs to path through a temp file and rename.
func writeRecordsFile(path string, recs []record.CanonicalRecord) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := writeRecords(f, recs); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
