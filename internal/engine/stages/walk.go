// Package stages implements the Walk, Detect, FindFiles and Execute pipeline stages.
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
)

// DirectionUp walks from the start directory toward the filesystem root.
const DirectionUp = "up"

// WalkOptions configures the Walk stage.
type WalkOptions struct {
	// Direction must be "up". An empty direction defaults to "up".
	Direction string
	// Matcher selects the ancestors to emit. A nil Matcher emits every ancestor.
	Matcher ports.Matcher
	// FS is used to tell files from directories. When nil, the start path is
	// assumed to be a directory.
	FS ports.FileSystem
}

// Walk emits the ancestors of a single start path, nearest first.
type Walk struct {
	matcher ports.Matcher
	fs      ports.FileSystem
}

// NewWalk creates a Walk stage.
func NewWalk(opts WalkOptions) (*Walk, error) {
	if opts.Direction != "" && opts.Direction != DirectionUp {
		return nil, domain.With(domain.ErrUnsupportedDirection, "direction", opts.Direction)
	}
	return &Walk{matcher: opts.Matcher, fs: opts.FS}, nil
}

// Name returns the stage name.
func (w *Walk) Name() string {
	return "walk"
}

// Run reads exactly one path from in and walks up from it. Later inputs are
// left unconsumed.
func (w *Walk) Run(
	ctx context.Context,
	s *session.Session,
	in queue.Receiver[domain.Item],
	out queue.Sender[domain.Item],
) error {
	start, ok := pipeline.Next(ctx, s, in)
	if !ok {
		return nil
	}

	dir, err := w.startDir(start)
	if err != nil {
		return err
	}

	for {
		if s.StoppedIn(ctx) {
			return nil
		}
		if w.matcher == nil || w.matcher.Match(dir) {
			if !pipeline.Emit(ctx, s, out, dir) {
				return nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (w *Walk) startDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve start path"), "path", path)
	}
	if w.fs == nil {
		return abs, nil
	}
	info, err := w.fs.Stat(abs)
	if err == nil && !info.IsDir() {
		return filepath.Dir(abs), nil
	}
	return abs, nil
}
