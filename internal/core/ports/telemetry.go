package ports

import "context"

// Span is a single traced unit of work.
//
//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Span interface {
	// End completes the span.
	End()
	// RecordError marks the span as failed with err.
	RecordError(err error)
	// SetAttribute attaches a key/value pair to the span.
	SetAttribute(key string, value any)
}

// Tracer creates spans for pipeline stages and executor calls.
type Tracer interface {
	// Start opens a span named name as a child of any span in ctx.
	Start(ctx context.Context, name string) (context.Context, Span)
}
