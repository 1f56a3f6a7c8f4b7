package stages

import (
	"context"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/ports"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/engine/pipeline"
	"go.trai.ch/rootconf/internal/queue"
)

// OnMatchFunc is called once for every path accepted by the Detect matcher.
type OnMatchFunc func(s *session.Session, path string)

// DetectOptions configures the Detect stage.
type DetectOptions struct {
	Matcher ports.Matcher
	OnMatch OnMatchFunc
}

// Detect observes the paths flowing through it and reports the ones that
// satisfy its matcher. It forwards every path unchanged.
type Detect struct {
	matcher ports.Matcher
	onMatch OnMatchFunc
}

// NewDetect creates a Detect stage.
func NewDetect(opts DetectOptions) *Detect {
	return &Detect{matcher: opts.Matcher, onMatch: opts.OnMatch}
}

// Name returns the stage name.
func (d *Detect) Name() string {
	return "detect"
}

// Run forwards every received path after evaluating the matcher against it.
func (d *Detect) Run(
	ctx context.Context,
	s *session.Session,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) error {
	for {
		path, ok := pipeline.Next(ctx, s, in)
		if !ok {
			return nil
		}
		if d.matcher == nil || d.matcher.Match(path) {
			if d.onMatch != nil {
				d.onMatch(s, path)
			}
		}
		if !pipeline.Emit(ctx, s, out, path) {
			return nil
		}
	}
}
