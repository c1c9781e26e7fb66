package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/civicmap/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the result accumulated by
// the previous ones.
type Step interface {
	// Do executes the step. It returns an error if the result cannot be
	// completed.
	Do(ctx context.Context, result *model.NearbyResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs the steps that turn a query into a NearbyResult.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stops at the first failure.
// Cancellation is checked before each step; a step that is already running
// is expected to honor ctx itself. The names of completed steps are appended
// to result.Steps.
func (p *Pipeline) Execute(ctx context.Context, result *model.NearbyResult) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("nearby query cancelled", "step", step.Name(), "reason", err)
			return err
		}
		if err := p.run(ctx, step, result); err != nil {
			return err
		}
		result.Steps = append(result.Steps, step.Name())
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, step Step, result *model.NearbyResult) error {
	started := time.Now()
	err := step.Do(ctx, result)
	elapsed := time.Since(started)

	if err != nil {
		p.logger.Error("nearby step failed", "step", step.Name(), "elapsed", elapsed, "error", err)
		return fmt.Errorf("%s: %w", step.Name(), err)
	}
	p.logger.Debug("nearby step done",
		"step", step.Name(),
		"elapsed", elapsed,
		"candidates", len(result.Candidates),
		"reports", len(result.Reports),
	)
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
