// Package pipeline connects configuration loading stages through unbounded
// queues and reports completion of a run exactly once.
package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/queue"
	"go.trai.ch/zerr"
)

// Stage is one processing unit of a pipeline.
//
// A stage receives items from in until it observes end-of-stream, may send
// items to out, and returns. It never sends domain.Done itself; the engine
// forwards the end-of-stream marker once the stage has returned.
type Stage interface {
	Name() string
	Run(ctx context.Context, s *session.Session, in queue.Receiver[domain.Item], out queue.Sender[domain.Item]) error
}

// StageFunc is the body of a stage created with Func.
type StageFunc func(ctx context.Context, s *session.Session, in queue.Receiver[domain.Item], out queue.Sender[domain.Item]) error

type funcStage struct {
	name string
	fn   StageFunc
}

// Func creates a named Stage from a plain function.
func Func(name string, fn StageFunc) Stage {
	return funcStage{name: name, fn: fn}
}

func (f funcStage) Name() string { return f.name }

func (f funcStage) Run(
	ctx context.Context,
	s *session.Session,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) error {
	return f.fn(ctx, s, in, out)
}

// StageError reports the failure of a single stage.
type StageError struct {
	Index int
	Stage string
	Err   error
}

func (e StageError) Error() string {
	return e.Err.Error()
}

func (e StageError) Unwrap() error {
	return e.Err
}

// Engine runs pipelines.
type Engine struct {
	logger ports.Logger
	tracer ports.Tracer
}

// NewEngine creates a new Engine with the given dependencies.
func NewEngine(logger ports.Logger, tracer ports.Tracer) *Engine {
	return &Engine{logger: logger, tracer: tracer}
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	sink queue.Sender[domain.Item]
}

// WithSink sets the output queue of the last stage. By default the last
// stage writes to a discard sink.
func WithSink(sink queue.Sender[domain.Item]) RunOption {
	return func(c *runConfig) {
		c.sink = sink
	}
}

// Run is the handle of a started pipeline run.
type Run struct {
	done chan struct{}

	mu   sync.Mutex
	errs []StageError
}

// Done is closed once every stage has returned and the completion callback,
// if it was due, has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is done or ctx is cancelled. It returns the
// joined stage failures of the run.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	errs := r.Errors()
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// Errors returns the stage failures reported so far.
func (r *Run) Errors() []StageError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageError, len(r.errs))
	copy(out, r.errs)
	return out
}

func (r *Run) report(e StageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, e)
}

// Run starts stages as a linear chain and returns immediately.
//
// Stage i reads from queue i and writes to queue i+1. The first queue is
// seeded with start followed by domain.Done. When every stage has returned
// and the run was not stopped, the session's completion callback fires
// exactly once. Each run carries its own stop token in the stage context, so
// stopping one run never affects a later run of the same session.
func (e *Engine) Run(
	ctx context.Context,
	s *session.Session,
	stages []Stage,
	start string,
	opts ...RunOption,
) *Run {
	cfg := runConfig{sink: queue.Discard[domain.Item]()}
	for _, opt := range opts {
		opt(&cfg)
	}

	queues := make([]*queue.Queue[domain.Item], len(stages))
	closers := make([]session.Closer, len(stages))
	for i := range queues {
		queues[i] = queue.New[domain.Item]()
		closers[i] = queues[i]
	}
	token := s.BeginRun(closers)
	ctx = session.WithRunState(ctx, token)

	run := &Run{done: make(chan struct{})}

	if len(stages) == 0 {
		go e.complete(s, token, run)
		return run
	}

	go func() {
		in := queues[0].Sender()
		in.Send(domain.NewItem(start))
		in.Send(domain.Done)
	}()

	var pending atomic.Int64
	pending.Store(int64(len(stages)))

	for i, stage := range stages {
		in := queues[i].Receiver()
		out := cfg.sink
		if i+1 < len(queues) {
			out = queues[i+1].Sender()
		}

		go func() {
			e.runStage(ctx, s, run, i, stage, in, out)
			out.Send(domain.Done)
			if pending.Add(-1) == 0 {
				go e.complete(s, token, run)
			}
		}()
	}

	return run
}

// Stop stops the most recent run of s. It is idempotent.
func (e *Engine) Stop(s *session.Session) {
	s.Stop()
}

func (e *Engine) runStage(
	ctx context.Context,
	s *session.Session,
	run *Run,
	index int,
	stage Stage,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) {
	ctx, span := e.tracer.Start(ctx, stage.Name())
	defer span.End()
	span.SetAttribute("stage.index", index)

	err := invoke(ctx, s, stage, in, out)
	if err == nil {
		return
	}

	err = zerr.With(zerr.With(err, "stage", stage.Name()), "index", strconv.Itoa(index))
	span.RecordError(err)
	run.report(StageError{Index: index, Stage: stage.Name(), Err: err})
	e.logger.Error(err)
}

func invoke(
	ctx context.Context,
	s *session.Session,
	stage Stage,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) (err error) {
	defer zerr.Defer(func(perr error) {
		err = domain.Wrap(perr, domain.ErrStagePanicked)
	})

	if err := stage.Run(ctx, s, in, out); err != nil {
		return domain.Wrap(err, domain.ErrStageFailed)
	}
	return nil
}

func (e *Engine) complete(s *session.Session, token *session.RunState, run *Run) {
	defer close(run.done)
	if token.Stopped() {
		e.logger.Debug("pipeline stopped before completion")
		return
	}
	s.NotifyLoaded()
}
