package stages

import (
	"context"
	"path/filepath"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/engine/pipeline"
	"go.trai.ch/rootconf/internal/queue"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// ExecuteOptions configures the Execute stage.
type ExecuteOptions struct {
	// Router maps a file extension to the executor applying files of that type.
	Router map[string]session.Executor
	// Tracer records one span per executed file. Defaults to no tracing.
	Tracer ports.Tracer
}

// Execute applies every received config file through the executor routed by
// its extension.
type Execute struct {
	router map[string]session.Executor
	tracer ports.Tracer
}

// NewExecute creates an Execute stage.
func NewExecute(opts ExecuteOptions) *Execute {
	return &Execute{router: opts.Router, tracer: opts.Tracer}
}

// Name returns the stage name.
func (e *Execute) Name() string {
	return "execute"
}

// Run executes files in the order received. Extensions configured as async are
// dispatched without blocking the loop; Run waits for them before returning.
// Executor failures are reported through the session and never end the stage.
func (e *Execute) Run(
	ctx context.Context,
	s *session.Session,
	in queue.Receiver[domain.Item],
	_ queue.Sender[domain.Item],
) error {
	var async errgroup.Group
	defer func() { _ = async.Wait() }()

	for {
		path, ok := pipeline.Next(ctx, s, in)
		if !ok {
			return nil
		}
		if s.IsLoaded(path) {
			continue
		}

		ext := filepath.Ext(path)
		exec, found := e.router[ext]
		if !found {
			s.ReportError(zerr.With(domain.With(domain.ErrNoExecutor, "extension", ext), "path", path), path)
			continue
		}

		if s.ExecOptions(ext).Async {
			async.Go(func() error {
				e.apply(ctx, s, exec, path, true)
				return nil
			})
			continue
		}
		e.apply(ctx, s, exec, path, false)
	}
}

// apply runs exec for path. A run stopped before the call skips it; a run
// stopped during the call does not mark path as loaded.
func (e *Execute) apply(ctx context.Context, s *session.Session, exec session.Executor, path string, async bool) {
	if s.StoppedIn(ctx) {
		return
	}
	ctx, span := e.startSpan(ctx, path, async)
	defer span.End()

	if err := invokeExecutor(ctx, s, exec, path); err != nil {
		span.RecordError(err)
		s.ReportError(err, path)
		return
	}
	if s.StoppedIn(ctx) {
		return
	}
	s.MarkLoaded(path)
}

func (e *Execute) startSpan(ctx context.Context, path string, async bool) (context.Context, ports.Span) {
	if e.tracer == nil {
		return ctx, nopSpan{}
	}
	ctx, span := e.tracer.Start(ctx, filepath.Base(path))
	span.SetAttribute("path", path)
	span.SetAttribute("extension", filepath.Ext(path))
	span.SetAttribute("async", async)
	return ctx, span
}

type nopSpan struct{}

func (nopSpan) End() {}
func (nopSpan) RecordError(error) {}
func (nopSpan) SetAttribute(string, any) {}

// invokeExecutor runs exec inside a failure boundary. The error callback is
// invoked by the caller, outside of it.
func invokeExecutor(ctx context.Context, s *session.Session, exec session.Executor, path string) (err error) {
	defer zerr.Defer(func(perr error) {
		err = zerr.With(domain.Wrap(perr, domain.ErrExecutorPanicked), "path", path)
	})

	if err := exec.Execute(ctx, s, path); err != nil {
		return zerr.With(domain.Wrap(err, domain.ErrExecutorFailed), "path", path)
	}
	return nil
}
