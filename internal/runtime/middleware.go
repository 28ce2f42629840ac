package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/opflow/internal/runtime/checksum"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/monitoring"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
)

// Ids of the middleware contributed by the default registrations.
const (
	TracingMiddlewareID           = "TracingMiddleware"
	TracingAttemptMiddlewareID    = "TracingAttemptMiddleware"
	MetricsMiddlewareID           = "MetricsMiddleware"
	MetricsAttemptMiddlewareID    = "MetricsAttemptMiddleware"
	MonitoringMiddlewareID        = "MonitoringMiddleware"
	MonitoringAttemptMiddlewareID = "MonitoringAttemptMiddleware"
	InvocationIDMiddlewareID      = "InvocationIDMiddleware"
	RetryInfoHeaderMiddlewareID   = "RetryInfoHeaderMiddleware"
	UserAgentMiddlewareID         = "UserAgentMiddleware"
	ResponseLoggingMiddlewareID   = "ResponseLoggingMiddleware"
)

const (
	invocationIDHeader = "amz-sdk-invocation-id"
	retryInfoHeader    = "amz-sdk-request"
	userAgentHeader    = "User-Agent"
	tracerName         = "github.com/drblury/opflow"
	outcomeSuccess     = "success"
)

// MiddlewareRegistration captures how a middleware is added to the stack of
// every call a client makes. Apply runs once when the client is built.
type MiddlewareRegistration struct {
	Name  string
	Apply func(r *Registrar) error
}

// DefaultMiddlewares returns the standard registrations used by NewClient.
// Registrations whose feature is disabled in the config add nothing.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		TracingMiddleware(),
		MetricsMiddleware(),
		MonitoringMiddleware(),
		InvocationIDMiddleware(),
		UserAgentMiddleware(),
		ResponseLoggingMiddleware(nil),
	}
}

// TracingMiddleware wraps every call in an OpenTelemetry client span and
// records each attempt as a span event.
func TracingMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracing",
		Apply: func(r *Registrar) error {
			if !r.Client().conf.TracingEnabled {
				return nil
			}
			r.Initialize(middleware.Before(IdempotencyTokenMiddlewareID), tracingMiddleware())
			r.Finalize(middleware.After(retry.MiddlewareID), tracingAttemptMiddleware())
			return nil
		},
	}
}

func tracingMiddleware() CallMiddleware {
	return NewCallMiddleware(TracingMiddlewareID,
		func(ctx context.Context, oc *operation.Context, next CallHandler) error {
			tracer := otel.Tracer(tracerName)
			ctx, span := tracer.Start(ctx, oc.ServiceName()+"."+oc.OperationName(),
				trace.WithSpanKind(trace.SpanKindClient))
			defer span.End()

			span.SetAttributes(
				attribute.String("rpc.system", "opflow"),
				attribute.String("rpc.service", oc.ServiceName()),
				attribute.String("rpc.method", oc.OperationName()),
				attribute.String("opflow.invocation_id", oc.InvocationID()),
			)

			err := next(ctx)

			span.SetAttributes(attribute.Int("opflow.attempts", oc.AttemptCount()))
			if id := oc.RequestID(); id != "" {
				span.SetAttributes(attribute.String("opflow.request_id", id))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, errspkg.Classify(err).String())
			}
			return err
		})
}

func tracingAttemptMiddleware() RequestMiddleware {
	return NewRequestMiddleware(TracingAttemptMiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
			span := trace.SpanFromContext(ctx)
			span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", oc.AttemptCount())))
			resp, err := next(ctx, b)
			if resp != nil {
				span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			}
			return resp, err
		})
}

// MetricsMiddleware records Prometheus call and attempt metrics.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Apply: func(r *Registrar) error {
			m := r.Client().metrics
			if m == nil {
				return nil
			}

			r.Initialize(middleware.Before(IdempotencyTokenMiddlewareID), NewCallMiddleware(MetricsMiddlewareID,
				func(ctx context.Context, oc *operation.Context, next CallHandler) error {
					start := time.Now()
					m.CallStarted(oc.ServiceName())
					err := next(ctx)
					m.CallFinished(oc.ServiceName(), oc.OperationName(), outcome(err), oc.AttemptCount(), time.Since(start))
					return err
				}))

			r.Finalize(middleware.After(retry.MiddlewareID), NewRequestMiddleware(MetricsAttemptMiddlewareID,
				func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
					m.AttemptStarted(oc.ServiceName(), oc.OperationName())
					return next(ctx, b)
				}))

			r.OnRetry(func(oc *operation.Context, _ retry.AttemptInfo, err error) {
				m.RetryScheduled(oc.ServiceName(), oc.OperationName(), errspkg.IsThrottling(err))
			})
			r.OnQuotaExceeded(func(oc *operation.Context, _ error) {
				m.QuotaRejected(oc.ServiceName(), oc.OperationName())
			})
			return nil
		},
	}
}

func outcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	return errspkg.Classify(err).String()
}

// MonitoringMiddleware publishes an event per attempt and per call.
func MonitoringMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "monitoring",
		Apply: func(r *Registrar) error {
			pub := r.Client().monitor
			if pub == nil {
				return nil
			}

			r.Initialize(middleware.Before(IdempotencyTokenMiddlewareID), NewCallMiddleware(MonitoringMiddlewareID,
				func(ctx context.Context, oc *operation.Context, next CallHandler) error {
					start := time.Now()
					err := next(ctx)
					ev := monitoring.CallEvent{
						Service:      oc.ServiceName(),
						Operation:    oc.OperationName(),
						InvocationID: oc.InvocationID(),
						RequestID:    oc.RequestID(),
						Attempts:     oc.AttemptCount(),
						Duration:     time.Since(start),
						Outcome:      outcome(err),
						Timestamp:    time.Now().UTC(),
					}
					if err != nil {
						ev.Error = err.Error()
					}
					publishQuietly(oc, pub.PublishCall(context.WithoutCancel(ctx), ev))
					return err
				}))

			r.Finalize(middleware.After(retry.MiddlewareID), NewRequestMiddleware(MonitoringAttemptMiddlewareID,
				func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
					start := time.Now()
					resp, err := next(ctx, b)
					ev := monitoring.AttemptEvent{
						Service:      oc.ServiceName(),
						Operation:    oc.OperationName(),
						InvocationID: oc.InvocationID(),
						Attempt:      oc.AttemptCount(),
						Latency:      time.Since(start),
						Timestamp:    time.Now().UTC(),
					}
					if resp != nil {
						ev.StatusCode = resp.StatusCode
					}
					if err != nil {
						ev.ErrorKind = errspkg.Classify(err).String()
						ev.Error = err.Error()
					}
					publishQuietly(oc, pub.PublishAttempt(context.WithoutCancel(ctx), ev))
					return resp, err
				}))
			return nil
		},
	}
}

// publishQuietly logs monitoring failures; they never fail the call.
func publishQuietly(oc *operation.Context, err error) {
	if err != nil && !errors.Is(err, monitoring.ErrPublisherClosed) {
		oc.Logger().Error("monitoring event dropped", err, nil)
	}
}

// InvocationIDMiddleware sends the invocation id, shared by all attempts,
// and the attempt number of each transmission.
func InvocationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "invocation_id",
		Apply: func(r *Registrar) error {
			configured := r.Client().conf.RetryMaxAttempts
			r.Build(middleware.Before(checksum.RequestMiddlewareID), NewRequestMiddleware(InvocationIDMiddlewareID,
				func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
					if id := oc.InvocationID(); id != "" {
						b.WithHeader(invocationIDHeader, id)
					}
					return next(ctx, b)
				}))
			r.Finalize(middleware.After(retry.MiddlewareID), NewRequestMiddleware(RetryInfoHeaderMiddlewareID,
				func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
					maxAttempts, ok := operation.Get(oc, retry.MaxAttemptsKey)
					if !ok {
						maxAttempts = configured
					}
					b.WithHeader(retryInfoHeader, fmt.Sprintf("attempt=%d; max=%d", oc.AttemptCount(), maxAttempts))
					return next(ctx, b)
				}))
			return nil
		},
	}
}

// UserAgentMiddleware identifies the runtime, the service and the optional
// application id.
func UserAgentMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "user_agent",
		Apply: func(r *Registrar) error {
			conf := r.Client().conf
			parts := []string{"opflow-go/" + Version}
			if conf.ServiceName != "" {
				parts = append(parts, "api/"+strings.ReplaceAll(conf.ServiceName, " ", "-"))
			}
			if conf.UserAgentAppID != "" {
				parts = append(parts, "app/"+conf.UserAgentAppID)
			}
			ua := strings.Join(parts, " ")

			r.Build(middleware.Back, NewRequestMiddleware(UserAgentMiddlewareID,
				func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
					if existing := b.Header().Get(userAgentHeader); existing != "" {
						b.WithHeader(userAgentHeader, ua+" "+existing)
					} else {
						b.WithHeader(userAgentHeader, ua)
					}
					return next(ctx, b)
				}))
			return nil
		},
	}
}

// ResponseLoggingMiddleware logs every raw response at debug level with
// credentials masked. A nil logger means the call logger.
func ResponseLoggingMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "response_logging",
		Apply: func(r *Registrar) error {
			r.Deserialize(middleware.Front, NewResponseMiddleware(ResponseLoggingMiddlewareID,
				func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next ResponseHandler) (*httpapi.Response, error) {
					l := logger
					if l == nil {
						l = oc.Logger()
					}
					resp, err := next(ctx, req)
					if resp == nil {
						return resp, err
					}
					fields := loggingpkg.LogFields{
						"operation": oc.OperationName(),
						"attempt":   oc.AttemptCount(),
						"status":    resp.StatusCode,
						"bytes":     len(resp.Body),
					}
					for k, v := range loggingpkg.HeaderFields(resp.Header) {
						fields[k] = v
					}
					l.Debug("Received response", fields)
					return resp, err
				}))
			return nil
		},
	}
}

func (c *Client) registerMiddlewares(registrations []MiddlewareRegistration) (*Registrar, error) {
	r := &Registrar{client: c}
	for _, reg := range registrations {
		if reg.Apply == nil {
			continue
		}
		if err := reg.Apply(r); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return nil, fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return r, nil
}
