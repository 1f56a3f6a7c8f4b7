package pipeline

import (
	"context"

	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/core/session"
	"go.trai.ch/rootconf/internal/queue"
)

// Next receives the next path for a stage. It reports false when the run
// carried by ctx was stopped, the queue yielded end-of-stream, or the item is
// domain.Done.
func Next(ctx context.Context, s *session.Session, in queue.Receiver[domain.Item]) (string, bool) {
	if s.StoppedIn(ctx) {
		return "", false
	}
	item, ok := in.Receive(ctx)
	if !ok || item.IsDone() || item.Path == "" {
		return "", false
	}
	return item.Path, true
}

// Emit sends path downstream unless the run carried by ctx was stopped. It
// reports whether the stage should keep going.
func Emit(ctx context.Context, s *session.Session, out queue.Sender[domain.Item], path string) bool {
	if s.StoppedIn(ctx) {
		return false
	}
	return out.Send(domain.NewItem(path))
}
