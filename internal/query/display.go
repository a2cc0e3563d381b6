package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cyberrag/crag/internal/semantic"
)

// ScoreLabel names the score column for a metric.
func ScoreLabel(m semantic.Metric) string {
	if m == semantic.MetricCosine {
		return "Similarity"
	}
	return "Distance"
}

// Snippet returns text unchanged if it has at most n runes, otherwise its
// first n runes followed by "...".
func Snippet(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return truncateRunes(text, n) + "..."
}

// FormatDisplay renders hits for the console: every hit gets its title,
// source and score; the top hit shows its full text and later hits an
// excerpt of snippetChars runes.
func FormatDisplay(result *Result, snippetChars int) string {
	if len(result.Hits) == 0 {
		return "No results.\n"
	}

	label := ScoreLabel(result.Metric)
	var b strings.Builder
	for i, h := range result.Hits {
		text := strings.TrimSpace(h.Record.BodyText)

		fmt.Fprintf(&b, "Result %d\n", h.Rank)
		fmt.Fprintf(&b, "  %-10s: %s\n", "Title", h.Record.DisplayTitle())
		fmt.Fprintf(&b, "  %-10s: %s\n", "Source", h.Record.SourceLabel())
		fmt.Fprintf(&b, "  %-10s: %.4f\n", label, h.Score)

		if i == 0 {
			fmt.Fprintf(&b, "\n  Full Match:\n%s\n\n", text)
		} else {
			fmt.Fprintf(&b, "  Snippet:\n  %s\n\n", Snippet(text, snippetChars))
		}
	}
	return b.String()
}
