package runtime

import (
	"context"
	"time"

	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
)

// HooksMiddlewareID identifies the attempt hooks in the Finalize step.
const HooksMiddlewareID = "AttemptHooksMiddleware"

// AttemptContext describes one transmitted attempt to hooks.
type AttemptContext struct {
	// Service and Operation name the call.
	Service   string
	Operation string
	// InvocationID is shared by every attempt of a call.
	InvocationID string
	// Attempt is 1 for the first transmission.
	Attempt int
	Method  string
	URL     string
	// Context is the context of the attempt.
	Context   context.Context
	StartedAt time.Time
	// Duration and StatusCode are only set in OnAttemptDone and OnAttemptError.
	Duration   time.Duration
	StatusCode int
}

// CallHooks defines callbacks for attempt lifecycle events.
// All hooks are optional; nil hooks are simply not called.
type CallHooks struct {
	// OnAttemptStart is called before an attempt is signed and sent.
	OnAttemptStart func(ctx AttemptContext)

	// OnAttemptDone is called when an attempt yields a successful response.
	OnAttemptDone func(ctx AttemptContext)

	// OnAttemptError is called when an attempt fails, including modeled
	// service errors.
	OnAttemptError func(ctx AttemptContext, err error)
}

// IsZero reports whether no hook is set.
func (h CallHooks) IsZero() bool {
	return h.OnAttemptStart == nil && h.OnAttemptDone == nil && h.OnAttemptError == nil
}

// Merge combines two CallHooks. The hooks from other run after those of h.
func (h CallHooks) Merge(other CallHooks) CallHooks {
	return CallHooks{
		OnAttemptStart: chain(h.OnAttemptStart, other.OnAttemptStart),
		OnAttemptDone:  chain(h.OnAttemptDone, other.OnAttemptDone),
		OnAttemptError: chain2(h.OnAttemptError, other.OnAttemptError),
	}
}

func chain[T any](a, b func(T)) func(T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}

func chain2[T, U any](a, b func(T, U)) func(T, U) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T, u U) {
		a(v, u)
		b(v, u)
	}
}

// HooksMiddleware invokes hooks around every attempt.
func HooksMiddleware(hooks CallHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "attempt_hooks",
		Apply: func(r *Registrar) error {
			if hooks.IsZero() {
				return nil
			}
			r.Finalize(middleware.After(retry.MiddlewareID), hooksMiddleware(hooks))
			return nil
		},
	}
}

func hooksMiddleware(hooks CallHooks) RequestMiddleware {
	return NewRequestMiddleware(HooksMiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
			attempt := AttemptContext{
				Service:      oc.ServiceName(),
				Operation:    oc.OperationName(),
				InvocationID: oc.InvocationID(),
				Attempt:      oc.AttemptCount(),
				Method:       b.Method(),
				URL:          b.URL().Redacted(),
				Context:      ctx,
				StartedAt:    time.Now(),
			}

			if hooks.OnAttemptStart != nil {
				hooks.OnAttemptStart(attempt)
			}

			resp, err := next(ctx, b)

			attempt.Duration = time.Since(attempt.StartedAt)
			if resp != nil {
				attempt.StatusCode = resp.StatusCode
			}

			if err != nil {
				if hooks.OnAttemptError != nil {
					hooks.OnAttemptError(attempt, err)
				}
			} else if hooks.OnAttemptDone != nil {
				hooks.OnAttemptDone(attempt)
			}
			return resp, err
		})
}

// LoggingHooks returns hooks that log attempt lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) CallHooks {
	return CallHooks{
		OnAttemptStart: func(ctx AttemptContext) {
			logger.Debug("Attempt started", loggingpkg.LogFields{
				"operation":     ctx.Operation,
				"invocation_id": ctx.InvocationID,
				"attempt":       ctx.Attempt,
			})
		},
		OnAttemptDone: func(ctx AttemptContext) {
			logger.Info("Attempt completed", loggingpkg.LogFields{
				"operation":     ctx.Operation,
				"invocation_id": ctx.InvocationID,
				"attempt":       ctx.Attempt,
				"status":        ctx.StatusCode,
				"duration_ms":   ctx.Duration.Milliseconds(),
			})
		},
		OnAttemptError: func(ctx AttemptContext, err error) {
			logger.Error("Attempt failed", err, loggingpkg.LogFields{
				"operation":     ctx.Operation,
				"invocation_id": ctx.InvocationID,
				"attempt":       ctx.Attempt,
				"status":        ctx.StatusCode,
				"duration_ms":   ctx.Duration.Milliseconds(),
			})
		},
	}
}

// AlertingHooks returns hooks that only fire on failed attempts.
func AlertingHooks(alertFunc func(ctx AttemptContext, err error)) CallHooks {
	return CallHooks{
		OnAttemptError: alertFunc,
	}
}
