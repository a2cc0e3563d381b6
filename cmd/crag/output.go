package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyberrag/crag/internal/corpus"
	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code})
	}
	os.Exit(code)
}

// exitWithErr exits with the code exitCodeFor assigns to err, adding a hint
// for failures the user can fix.
func exitWithErr(err error, format string, args ...interface{}) {
	code := exitCodeFor(err)
	msg := fmt.Sprintf(format, args...) + ": " + err.Error()
	hint := hintFor(err)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		if hint != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", hint)
		}
	} else {
		outputJSON(ErrorResponse{Error: msg, Code: code, Hint: hint})
	}
	os.Exit(code)
}

// exitCodeFor maps package sentinel errors to exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, corpus.ErrBuildInput):
		return ExitDataError
	case errors.Is(err, corpus.ErrAlignment),
		errors.Is(err, corpus.ErrModelMismatch),
		errors.Is(err, semantic.ErrMetricMismatch),
		errors.Is(err, semantic.ErrDimensionMismatch):
		return ExitAlignmentError
	case errors.Is(err, embedding.ErrModelNotFound):
		return ExitModelNotFound
	case errors.Is(err, embedding.ErrUnavailable):
		return ExitEncoderUnavailable
	case errors.Is(err, semantic.ErrIndexNotFound),
		errors.Is(err, semantic.ErrUnsupportedVersion),
		errors.Is(err, semantic.ErrCorruptIndex),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrCorruptMetadata):
		return ExitConfigError
	default:
		return ExitError
	}
}

// hintFor returns a follow-up suggestion for well-known failures, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, semantic.ErrIndexNotFound), errors.Is(err, storage.ErrNotFound):
		return "Run 'crag build <input>' to create the index and metadata."
	case errors.Is(err, corpus.ErrAlignment):
		return "The index and metadata come from different builds. Rebuild both with 'crag build'."
	case errors.Is(err, embedding.ErrModelNotFound):
		return "Pull the model first, e.g. 'ollama pull " + embedding.DefaultModel + "'."
	case errors.Is(err, embedding.ErrUnavailable):
		return "Start the embedding server ('ollama serve') or set embedding.provider to hashing."
	default:
		return ""
	}
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
