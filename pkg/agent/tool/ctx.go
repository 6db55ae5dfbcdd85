package tool

import "context"

// UpdateFunc receives progress messages posted by a tool while it runs.
// The assist controller installs one to stream tool activity to the
// requester.
type UpdateFunc func(ctx context.Context, message string)

type contextKey struct{}

// WithUpdate returns a new context that carries the given UpdateFunc.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, contextKey{}, fn)
}

// Update posts a progress message through the UpdateFunc stored in ctx.
// Without one the call is a no-op, so tools can always call it.
func Update(ctx context.Context, message string) {
	if fn, ok := ctx.Value(contextKey{}).(UpdateFunc); ok {
		fn(ctx, message)
	}
}
