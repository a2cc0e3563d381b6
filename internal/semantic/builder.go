package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/record"
)

// ProgressReporter receives progress updates during index building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// Builder constructs an index and its aligned metadata rows from canonical
// records in a single pass.
type Builder struct {
	provider embedding.Provider
	metric   Metric
	progress ProgressReporter
	logger   *slog.Logger
}

// NewBuilder creates a new index builder.
func NewBuilder(provider embedding.Provider, metric Metric) *Builder {
	return &Builder{
		provider: provider,
		metric:   metric,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// SetLogger sets the logger used for build events.
func (b *Builder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Build embeds every record with a non-empty body, in input order. The
// returned metadata slice is aligned with the index: metadata[i] describes
// slot i. Any embedding failure aborts the build and nothing is returned.
func (b *Builder) Build(ctx context.Context, records []record.CanonicalRecord) (*Index, []record.Metadata, *BuildStats, error) {
	if !b.metric.Valid() {
		return nil, nil, nil, fmt.Errorf("unknown metric %q", b.metric)
	}
	startTime := time.Now()

	idx := NewIndex(b.provider.ModelName(), b.provider.Dimensions(), b.metric)
	meta := make([]record.Metadata, 0, len(records))
	stats := &BuildStats{SkippedReason: "empty_body"}

	b.logger.Info("index build started",
		slog.Int("records", len(records)),
		slog.String("model", idx.ModelName),
		slog.String("metric", string(b.metric)))

	total := len(records)
	for i, rec := range records {
		select {
		case <-ctx.Done():
			return nil, nil, nil, ctx.Err()
		default:
		}

		if b.progress != nil {
			b.progress.OnProgress(i+1, total)
		}

		if strings.TrimSpace(rec.BodyText) == "" {
			stats.RecordsSkipped++
			b.logger.Debug("record skipped", slog.String("id", rec.ID))
			continue
		}

		emb, err := b.provider.Embed(ctx, rec.BodyText)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("embedding record %s: %w", rec.ID, err)
		}

		slot, err := idx.Add(rec.ID, emb.Vector)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("adding embedding for %s: %w", rec.ID, err)
		}
		meta = append(meta, rec.ToMetadata(slot))
		stats.RecordsIndexed++
	}

	stats.Duration = time.Since(startTime)
	b.logger.Info("index build finished",
		slog.Int("indexed", stats.RecordsIndexed),
		slog.Int("skipped", stats.RecordsSkipped),
		slog.Duration("duration", stats.Duration))

	return idx, meta, stats, nil
}
