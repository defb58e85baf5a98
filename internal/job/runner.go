package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fmueller/whisperdesk/internal/job"

// Runner executes at most one transcription job at a time on a background
// goroutine and hands the terminal Result over through a single slot that
// the caller drains with Poll.
type Runner struct {
	loader     whisper.Loader
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
	newID      func() string
	onComplete func(Result)
	spawn      func(func())
	tracer     trace.Tracer
	metrics    instruments

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	pending *Result
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Runner)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeout bounds every job; zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCompletionHook registers fn to run on the worker goroutine after the
// result has been published. fn must not touch UI state.
func WithCompletionHook(fn func(Result)) Option {
	return func(r *Runner) {
		r.onComplete = fn
	}
}

func NewRunner(loader whisper.Loader, opts ...Option) *Runner {
	r := &Runner{
		loader: loader,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		spawn:  func(fn func()) { go fn() },
		tracer: otel.Tracer(instrumentationName),
		state:  State{Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newInstruments(otel.Meter(instrumentationName))
	return r
}

// Submit validates req and starts it on a worker goroutine. It never blocks
// on the job itself. Cancelling ctx cancels the job.
func (r *Runner) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrClosed
	}
	if r.state.Status != StatusIdle {
		return "", ErrBusy
	}

	jobCtx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		var cancelTimeout context.CancelFunc
		jobCtx, cancelTimeout = context.WithTimeout(jobCtx, r.timeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}

	id := r.newID()
	r.state = State{JobID: id, Status: StatusRunning, Stage: StageNone}
	r.cancel = cancel

	r.metrics.submitted.Add(ctx, 1)
	r.logger.Info("job submitted", zap.String("job_id", id), zap.String("source", req.Source), zap.String("model", req.Model.String()))

	started := r.now()
	r.wg.Add(1)
	r.spawn(func() {
		defer r.wg.Done()
		r.run(jobCtx, cancel, id, req, started)
	})
	return id, nil
}

// Poll returns the pending result and clears the slot. It never waits for
// the worker.
func (r *Runner) Poll() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return Result{}, false
	}
	res := *r.pending
	r.pending = nil
	r.state = State{Status: StatusIdle}
	return res, true
}

// Cancel aborts the in-flight job. The job still publishes a failure result.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Status != StatusRunning || r.cancel == nil {
		return ErrNoRunningJob
	}
	r.logger.Info("cancelling job", zap.String("job_id", r.state.JobID))
	r.cancel()
	return nil
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) Status() Status {
	return r.State().Status
}

// Stage is StageNone unless a job is running.
func (r *Runner) Stage() Stage {
	return r.State().Stage
}

// Close rejects further submissions, cancels the in-flight job and waits for
// its worker to return.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, id string, req Request, started time.Time) {
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "job.run", trace.WithAttributes(
		attribute.String("job.id", id),
		attribute.String("job.model", req.Model.String()),
	))
	defer span.End()

	text, err := r.execute(ctx, id, req)

	res := Result{
		JobID:      id,
		Request:    req,
		StartedAt:  started,
		FinishedAt: r.now(),
	}
	logger := r.logger.With(zap.String("job_id", id), zap.Duration("elapsed", res.Elapsed()))
	if err != nil {
		res.Kind = KindFailure
		res.Message = r.failureMessage(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Message)
		logger.Warn("job failed", zap.String("message", res.Message))
	} else {
		res.Kind = KindSuccess
		res.Text = text
		span.SetStatus(codes.Ok, "")
		logger.Info("job finished", zap.Int("chars", len(text)))
	}

	r.publish(res)
	r.metrics.record(context.WithoutCancel(ctx), res)

	if r.onComplete != nil {
		r.onComplete(res)
	}
}

// execute loads the model and then transcribes. Panics from the loader or
// the model surface as errors.
func (r *Runner) execute(ctx context.Context, id string, req Request) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked", zap.String("job_id", id), zap.Any("panic", p))
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	r.setStage(StageLoadingModel)
	loadCtx, loadSpan := r.tracer.Start(ctx, "model.load")
	model, err := r.loader.LoadModel(loadCtx, req.Model)
	endSpan(loadSpan, err)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.setStage(StageTranscribing)
	transcribeCtx, transcribeSpan := r.tracer.Start(ctx, "model.transcribe")
	text, err = model.Transcribe(transcribeCtx, req.Source)
	endSpan(transcribeSpan, err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *Runner) setStage(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Stage = stage
}

func (r *Runner) publish(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = &res
	r.cancel = nil
	r.state.Stage = StageNone
	if res.Succeeded() {
		r.state.Status = StatusSucceeded
	} else {
		r.state.Status = StatusFailed
	}
}

func (r *Runner) failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && r.timeout > 0:
		return fmt.Sprintf("job timed out after %s", r.timeout)
	case errors.Is(err, context.DeadlineExceeded):
		return "job timed out"
	case errors.Is(err, context.Canceled):
		return ErrCancelled.Error()
	default:
		return err.Error()
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
