// Package query turns a user question into ranked hits, a display listing or
// a budgeted evidence block, and optionally hands the evidence to an answerer.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
)

// Defaults for engine options.
const (
	DefaultTopK              = 5
	DefaultMaxContextChars   = 3500
	DefaultSnippetChars      = 400
	DefaultEvidenceBodyChars = 1800
	DefaultAnswerTimeout     = 120 * time.Second
)

// ErrNoAnswerer is returned by Ask when the engine has no answerer.
var ErrNoAnswerer = errors.New("no answerer configured")

// Answerer produces a free-text answer for a rendered prompt.
type Answerer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Hit is one search result joined with its metadata row.
type Hit struct {
	Rank   int             `json:"rank"`
	Slot   int             `json:"slot"`
	Score  float32         `json:"score"`
	Record record.Metadata `json:"record"`
}

// Result is the outcome of one search.
type Result struct {
	Query          string          `json:"query"`
	RetrievalQuery string          `json:"retrieval_query"`
	Metric         semantic.Metric `json:"metric"`
	Hits           []Hit           `json:"hits"`
}

// Engine holds the encoder, index and metadata store for one query session.
// It has no mutable state after construction and is safe for concurrent use
// as long as its provider and store are.
type Engine struct {
	provider embedding.Provider
	index    *semantic.Index
	store    storage.MetadataStore

	topK              int
	maxContextChars   int
	snippetChars      int
	evidenceBodyChars int
	rewrite           bool
	answerer          Answerer
	answerTimeout     time.Duration
	logger            *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK sets the number of hits to retrieve.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// WithMaxContextChars sets the evidence budget in characters.
func WithMaxContextChars(n int) Option {
	return func(e *Engine) {
		e.maxContextChars = n
	}
}

// WithSnippetChars sets the excerpt length for hits after the first.
func WithSnippetChars(n int) Option {
	return func(e *Engine) {
		e.snippetChars = n
	}
}

// WithEvidenceBodyChars caps each cleaned body in an evidence block.
func WithEvidenceBodyChars(n int) Option {
	return func(e *Engine) {
		e.evidenceBodyChars = n
	}
}

// WithRewrite enables or disables appending CWE identifiers to the
// retrieval query.
func WithRewrite(enabled bool) Option {
	return func(e *Engine) {
		e.rewrite = enabled
	}
}

// WithAnswerer sets the collaborator used by Ask, and the timeout applied to
// each call.
func WithAnswerer(a Answerer, timeout time.Duration) Option {
	return func(e *Engine) {
		e.answerer = a
		if timeout > 0 {
			e.answerTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over an opened index and store. The provider
// must produce vectors of the index width.
func NewEngine(provider embedding.Provider, index *semantic.Index, store storage.MetadataStore, opts ...Option) (*Engine, error) {
	if provider == nil || index == nil || store == nil {
		return nil, errors.New("provider, index and store are required")
	}
	if provider.Dimensions() != index.Dimensions {
		return nil, fmt.Errorf("%w: encoder produces %d, index holds %d",
			semantic.ErrDimensionMismatch, provider.Dimensions(), index.Dimensions)
	}

	e := &Engine{
		provider:          provider,
		index:             index,
		store:             store,
		topK:              DefaultTopK,
		maxContextChars:   DefaultMaxContextChars,
		snippetChars:      DefaultSnippetChars,
		evidenceBodyChars: DefaultEvidenceBodyChars,
		rewrite:           true,
		answerTimeout:     DefaultAnswerTimeout,
		logger:            slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TopK returns the configured default k.
func (e *Engine) TopK() int {
	return e.topK
}

// Search embeds text, finds the k nearest slots and joins them with their
// metadata. Hits keep exactly the index order. k <= 0 is rejected with
// semantic.ErrInvalidK.
func (e *Engine) Search(ctx context.Context, text string, k int) (*Result, error) {
	retrieval := text
	if e.rewrite {
		retrieval = RewriteQuery(text)
	}

	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", semantic.ErrInvalidK, k)
	}

	vecs, err := embedding.Encode(ctx, e.provider, []string{retrieval})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	found, err := e.index.Search(vecs[0], k)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Query:          text,
		RetrievalQuery: retrieval,
		Metric:         e.index.Metric,
		Hits:           make([]Hit, 0, len(found)),
	}
	for i, f := range found {
		row, err := e.store.Get(f.Slot)
		if err != nil {
			return nil, fmt.Errorf("joining slot %d: %w", f.Slot, err)
		}
		result.Hits = append(result.Hits, Hit{Rank: i + 1, Slot: f.Slot, Score: f.Score, Record: row})
	}

	e.logger.Debug("search",
		slog.String("query", retrieval),
		slog.Int("k", k),
		slog.Int("hits", len(result.Hits)))
	return result, nil
}

// HandleQuery runs a search with the default k and formats it for display.
func (e *Engine) HandleQuery(ctx context.Context, text string) (string, error) {
	result, err := e.Search(ctx, text, e.topK)
	if err != nil {
		return "", err
	}
	return FormatDisplay(result, e.snippetChars), nil
}

// Evidence runs a search with the default k and assembles the hits into a
// budgeted context block. Returns ErrNoUsableEntries if no block fits.
func (e *Engine) Evidence(ctx context.Context, text string) (*Evidence, error) {
	result, err := e.Search(ctx, text, e.topK)
	if err != nil {
		return nil, err
	}
	return AssembleEvidence(result.Hits, e.maxContextChars, e.evidenceBodyChars)
}

// Ask retrieves evidence for question and asks the answerer. Retrieval
// failures are returned as errors. An empty evidence set yields
// NoUsableEntriesMessage, and answerer failures come back as a visible
// diagnostic string; neither is an error.
func (e *Engine) Ask(ctx context.Context, question string) (string, error) {
	answer, _, err := e.AskWithEvidence(ctx, question)
	return answer, err
}

// AskWithEvidence is Ask that also returns the evidence the answerer saw.
// The evidence is nil when no entry fit the context budget.
func (e *Engine) AskWithEvidence(ctx context.Context, question string) (string, *Evidence, error) {
	if e.answerer == nil {
		return "", nil, ErrNoAnswerer
	}

	ev, err := e.Evidence(ctx, question)
	if errors.Is(err, ErrNoUsableEntries) {
		return NoUsableEntriesMessage, nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	prompt := RenderPrompt(question, ev.Text)

	actx, cancel := context.WithTimeout(ctx, e.answerTimeout)
	defer cancel()

	start := time.Now()
	answer, err := e.answerer.Complete(actx, prompt)
	if err != nil {
		e.logger.Warn("answer failed", slog.Any("error", err))
		return AdapterErrorMessage(err), ev, nil
	}
	e.logger.Debug("answer received",
		slog.Int("blocks", ev.Blocks),
		slog.Int("context_chars", ev.Chars),
		slog.Duration("elapsed", time.Since(start)))
	return answer, ev, nil
}

// AdapterErrorMessage renders an answerer failure for the user.
func AdapterErrorMessage(err error) string {
	return "!! Error contacting LLM :: " + err.Error()
}
