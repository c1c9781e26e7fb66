package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/civicmap/internal/model"
)

// DefaultConcurrency bounds the number of pipelines a BatchProcessor runs
// at once.
const DefaultConcurrency = 4

// BatchProcessor answers several nearby queries concurrently.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each query.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent pipelines.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent pipelines.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs one pipeline per query and returns the results in query
// order. The first failing query cancels the others and its error is
// returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, queries []model.NearbyQuery) ([]*model.NearbyResult, error) {
	bp.logger.Debug("starting batch",
		"queries", len(queries),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*model.NearbyResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, q := range queries {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result := model.NewNearbyResult(q)
			if err := bp.pipelineFactory().Execute(ctx, result); err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bp.logger.Debug("batch complete",
		"queries", len(queries),
		"elapsed", time.Since(startTime),
	)
	return results, nil
}
