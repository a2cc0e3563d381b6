// Package console runs the line-oriented question loop. All retrieval logic
// lives in the handler; this package only reads, dispatches and prints.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DefaultExitWords end the loop, compared case-insensitively.
var DefaultExitWords = []string{"exit", "quit"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Handler answers one line of input.
type Handler func(ctx context.Context, line string) (string, error)

// Options configures Run.
type Options struct {
	// Title is printed once before the first prompt.
	Title string

	// Prompt is printed before each read when Interactive is set.
	Prompt string

	// Status is printed before each handler call, e.g. ":: Searching index ...".
	Status string

	// ExitWords end the loop. Nil selects DefaultExitWords.
	ExitWords []string

	// Interactive shows the prompt. Callers set it when stdin is a terminal.
	Interactive bool

	// Styled renders title, status and errors with terminal colors.
	Styled bool

	// Separator is printed after each answer when non-empty.
	Separator string

	// Fatal reports whether a handler error must end the session. Errors it
	// does not claim are printed and the loop continues.
	Fatal func(error) bool
}

func (o Options) render(style lipgloss.Style, s string) string {
	if !o.Styled {
		return s
	}
	return style.Render(s)
}

// IsExit reports whether line is one of the exit words.
func IsExit(line string, words []string) bool {
	if words == nil {
		words = DefaultExitWords
	}
	line = strings.TrimSpace(line)
	for _, w := range words {
		if strings.EqualFold(line, w) {
			return true
		}
	}
	return false
}

// Run reads lines from in until EOF, an exit word, context cancellation or a
// fatal handler error. Blank lines are ignored. The returned error is nil on
// a normal exit.
func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options, handle Handler) error {
	if opts.Title != "" {
		fmt.Fprintf(out, "\n%s\n", opts.render(titleStyle, "=== "+opts.Title+" ==="))
	}

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Interactive {
			fmt.Fprintf(out, "\n%s", opts.Prompt)
		}

		var raw string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return nil
			}
			raw = l
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if IsExit(line, opts.ExitWords) {
			return nil
		}

		if opts.Status != "" {
			fmt.Fprintf(out, "\n%s\n", opts.render(statusStyle, opts.Status))
		}

		answer, err := handle(ctx, line)
		if err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return err
			}
			fmt.Fprintf(out, "\n%s\n", opts.render(errorStyle, "!! "+err.Error()))
			continue
		}

		fmt.Fprintf(out, "\n%s", answer)
		if !strings.HasSuffix(answer, "\n") {
			fmt.Fprintln(out)
		}
		if opts.Separator != "" {
			fmt.Fprintf(out, "\n%s\n", opts.render(ruleStyle, opts.Separator))
		}
	}
}

// readLines scans in on its own goroutine so a blocked read never delays
// cancellation. lines is closed at EOF, after which readErr yields the scan
// error or nil. Closing done releases the goroutine once its current read
// returns.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}
