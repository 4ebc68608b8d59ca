// Package auditor runs one structured LLM review of one document for one role.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/budget"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/execution"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/telemetry"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/validation"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 3

	// DocumentAttachment is the file name the document is attached under.
	DocumentAttachment = "document.md"
)

// Options bound a worker's calls.
type Options struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration
	// MaxAttempts counts the first call. Values below 1 mean 1.
	MaxAttempts int
	// RetryBackoff is the base wait between attempts. Zero disables waiting.
	RetryBackoff time.Duration
}

// Worker executes audits for a single role.
type Worker struct {
	role      models.AuditorRole
	provider  execution.Provider
	model     string
	budget    *budget.Budget
	opts      Options
	collector telemetry.Collector
	logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithModel sets the model requested from the provider.
func WithModel(model string) Option {
	return func(w *Worker) { w.model = model }
}

// WithCollector attaches a telemetry collector.
func WithCollector(c telemetry.Collector) Option {
	return func(w *Worker) {
		if c != nil {
			w.collector = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker for role. A nil budget is unbounded.
func NewWorker(role models.AuditorRole, provider execution.Provider, b *budget.Budget, opts Options, options ...Option) *Worker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	w := &Worker{
		role:      role,
		provider:  provider,
		budget:    b,
		opts:      opts,
		collector: telemetry.Nop{},
		logger:    slog.Default(),
	}
	for _, o := range options {
		o(w)
	}
	return w
}

// Role returns the role this worker audits as.
func (w *Worker) Role() models.AuditorRole { return w.role }

// Execute sends prompt and returns a validated response.
func (w *Worker) Execute(ctx context.Context, prompt string, stage models.DocumentStage) (*models.AuditorResponse, error) {
	return w.run(ctx, &execution.CompletionRequest{Model: w.model, Prompt: prompt}, stage)
}

// ExecuteDocument is Execute with the document attached as a file for
// providers that expose a working directory.
func (w *Worker) ExecuteDocument(ctx context.Context, prompt string, stage models.DocumentStage, document string) (*models.AuditorResponse, error) {
	return w.run(ctx, &execution.CompletionRequest{
		Model:       w.model,
		Prompt:      prompt,
		Attachments: []execution.Attachment{{Path: DocumentAttachment, Content: document}},
	}, stage)
}

func (w *Worker) run(ctx context.Context, req *execution.CompletionRequest, stage models.DocumentStage) (*models.AuditorResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, w.fail(stage, attempt-1, err)
		}

		if err := w.budget.Acquire(); err != nil {
			w.logger.WarnContext(ctx, "call budget exhausted", "role", w.role, "stage", stage, "attempt", attempt)
			if lastErr == nil {
				return nil, err
			}
			return nil, w.fail(stage, attempt-1, errors.Join(err, lastErr))
		}

		resp, err := w.attempt(ctx, req, stage, attempt)
		if err == nil {
			if attempt > 1 {
				w.logger.DebugContext(ctx, "auditor succeeded after retry", "role", w.role, "attempt", attempt)
			}
			return resp, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, w.fail(stage, attempt, ctxErr)
		}

		if attempt < w.opts.MaxAttempts {
			w.logger.WarnContext(ctx, "auditor attempt failed, retrying",
				"role", w.role, "stage", stage, "attempt", attempt, "max_attempts", w.opts.MaxAttempts, "error", err)
			if err := w.backoff(ctx, attempt); err != nil {
				return nil, w.fail(stage, attempt, err)
			}
		}
	}

	return nil, w.fail(stage, w.opts.MaxAttempts, lastErr)
}

func (w *Worker) attempt(ctx context.Context, req *execution.CompletionRequest, stage models.DocumentStage, attempt int) (resp *models.AuditorResponse, err error) {
	ctx, finish := w.collector.StartAttempt(ctx, w.role, stage, attempt)
	defer func() { finish(err) }()

	attemptCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	out, err := w.provider.Complete(attemptCtx, req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt %d timed out after %s: %w", attempt, w.opts.Timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("provider %s: %w", w.provider.Name(), err)
	}

	parsed, err := validation.ParseAuditorResponse(out.Text)
	if err != nil {
		return nil, err
	}
	if parsed.AuditorRole != w.role || parsed.DocumentAnalyzed != stage {
		return nil, fmt.Errorf("%w: got %s/%s, want %s/%s", ErrMismatch, parsed.AuditorRole, parsed.DocumentAnalyzed, w.role, stage)
	}
	return parsed, nil
}

// backoff waits before the next attempt. The wait is skipped when it would
// run past the caller's deadline.
func (w *Worker) backoff(ctx context.Context, attempt int) error {
	if w.opts.RetryBackoff <= 0 {
		return nil
	}
	wait := w.opts.RetryBackoff << (attempt - 1)
	wait = wait/2 + time.Duration(rand.Int64N(int64(wait/2)+1))

	if deadline, ok := ctx.Deadline(); ok && time.Now().Add(wait).After(deadline) {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) fail(stage models.DocumentStage, attempts int, err error) *ExecutionError {
	return &ExecutionError{Role: w.role, Stage: stage, Attempts: attempts, Err: err}
}
