// Package middleware implements the typed handler chain every operation call
// runs through: five ordered steps, each a list of identified middleware
// folded around the next step.
package middleware

import (
	"context"

	"github.com/drblury/opflow/internal/runtime/operation"
)

// Handler is a terminal or composed call.
type Handler[In, Out any] interface {
	Handle(ctx context.Context, oc *operation.Context, in In) (Out, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[In, Out any] func(ctx context.Context, oc *operation.Context, in In) (Out, error)

func (f HandlerFunc[In, Out]) Handle(ctx context.Context, oc *operation.Context, in In) (Out, error) {
	return f(ctx, oc, in)
}

// Middleware wraps the next handler of a step. Implementations may transform
// the input, inspect the output, or return without calling next.
type Middleware[In, Out any] interface {
	ID() string
	HandleMiddleware(ctx context.Context, oc *operation.Context, in In, next Handler[In, Out]) (Out, error)
}

// MiddlewareFunc is the function form of HandleMiddleware.
type MiddlewareFunc[In, Out any] func(ctx context.Context, oc *operation.Context, in In, next Handler[In, Out]) (Out, error)

type funcMiddleware[In, Out any] struct {
	id string
	fn MiddlewareFunc[In, Out]
}

// NewMiddleware builds a Middleware from an id and a function.
func NewMiddleware[In, Out any](id string, fn MiddlewareFunc[In, Out]) Middleware[In, Out] {
	return &funcMiddleware[In, Out]{id: id, fn: fn}
}

func (m *funcMiddleware[In, Out]) ID() string { return m.id }

func (m *funcMiddleware[In, Out]) HandleMiddleware(ctx context.Context, oc *operation.Context, in In, next Handler[In, Out]) (Out, error) {
	return m.fn(ctx, oc, in, next)
}

// decorated binds one middleware to the handler it wraps.
type decorated[In, Out any] struct {
	m    Middleware[In, Out]
	next Handler[In, Out]
}

func (d decorated[In, Out]) Handle(ctx context.Context, oc *operation.Context, in In) (Out, error) {
	return d.m.HandleMiddleware(ctx, oc, in, d.next)
}
