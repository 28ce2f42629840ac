package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/drblury/opflow/internal/runtime/auth"
	"github.com/drblury/opflow/internal/runtime/checksum"
	"github.com/drblury/opflow/internal/runtime/codec"
	"github.com/drblury/opflow/internal/runtime/endpoint"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
	"github.com/drblury/opflow/internal/runtime/waiter"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

// Ids of the standard middleware every call stack starts with.
const (
	IdempotencyTokenMiddlewareID = "IdempotencyTokenMiddleware"
	URLPathMiddlewareID          = "URLPathMiddleware"
	SerializerMiddlewareID       = "OperationSerializerMiddleware"
	ContentHeadersMiddlewareID   = "ContentHeadersMiddleware"
	ErrorMappingMiddlewareID     = "ErrorMappingMiddleware"
	DeserializerMiddlewareID     = "OperationDeserializerMiddleware"
)

// IdempotencyToken reads and writes the idempotency token member of an input.
type IdempotencyToken[I any] struct {
	Get func(in I) string
	Set func(in I, token string) I
}

// Operation describes one modeled operation of a service.
type Operation[I, O any] struct {
	Name   string
	Method string
	// URLPath builds the request path from the input. It should fail when a
	// required path member is missing.
	URLPath    func(in I) (string, error)
	HostPrefix string

	// Codec encodes the input and decodes the output when Serialize or
	// Deserialize are not set.
	Codec       codec.BodyCodec
	Serialize   func(ctx context.Context, in I, b *httpapi.RequestBuilder) error
	Deserialize func(resp *httpapi.Response) (O, error)
	// DeserializeError maps non-2xx responses. DeserializeServiceError is
	// used when nil.
	DeserializeError func(oc *operation.Context, resp *httpapi.Response) error

	IdempotencyToken *IdempotencyToken[I]

	// ChecksumAlgorithm names the request checksum; empty disables it.
	ChecksumAlgorithm func(in I) string
	// ValidateResponseChecksum enables response validation for the listed
	// algorithms, every flexible one when empty.
	ValidateResponseChecksum bool
	ResponseChecksums        []checksum.Algorithm

	// Customize edits the stack after every middleware is in place.
	Customize func(stack *middleware.Stack[I, O]) error
}

// Metadata describes how a call went.
type Metadata struct {
	Attempts     int
	InvocationID string
	RequestID    string
	Duration     time.Duration
}

// CallOptions override client settings for a single call.
type CallOptions struct {
	RetryMaxAttempts int
	Region           string
	Logger           loggingpkg.ServiceLogger
}

// Invoke runs op with in through a fresh context and stack.
func Invoke[I, O any](ctx context.Context, c *Client, op Operation[I, O], in I, optFns ...func(*CallOptions)) (O, Metadata, error) {
	var zero O
	if c == nil {
		return zero, Metadata{}, errspkg.ErrClientRequired
	}
	if op.Name == "" {
		return zero, Metadata{}, errspkg.ErrOperationNameRequired
	}

	opts := CallOptions{
		RetryMaxAttempts: c.conf.RetryMaxAttempts,
		Region:           c.conf.Region,
		Logger:           c.logger,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	oc := c.newContext(op.Name, op.Method, op.HostPrefix, opts)
	stack, err := newStack(c, op, in, opts)
	if err != nil {
		return zero, Metadata{InvocationID: oc.InvocationID()}, err
	}

	start := time.Now()
	out, err := stack.HandleMiddleware(ctx, oc, in, c.transport)
	md := Metadata{
		Attempts:     oc.AttemptCount(),
		InvocationID: oc.InvocationID(),
		RequestID:    oc.RequestID(),
		Duration:     time.Since(start),
	}
	return out, md, err
}

// NewWaiter returns a waiter polling op through c until an acceptor matches.
func NewWaiter[I, O any](c *Client, op Operation[I, O], opts waiter.Options, acceptors ...waiter.Acceptor[O]) (*waiter.Waiter[I, O], error) {
	if opts.Logger == nil && c != nil {
		opts.Logger = c.logger
	}
	call := func(ctx context.Context, in I) (O, error) {
		out, _, err := Invoke(ctx, c, op, in)
		return out, err
	}
	return waiter.New(op.Name+"Waiter", call, opts, acceptors...)
}

func newStack[I, O any](c *Client, op Operation[I, O], in I, opts CallOptions) (*middleware.Stack[I, O], error) {
	stack := middleware.NewStack[I, O](op.Name)
	algorithm := ""
	if op.ChecksumAlgorithm != nil {
		algorithm = op.ChecksumAlgorithm(in)
	}

	onRetry, onQuota := c.registrar.retryObservers()
	retryOpts := c.retryOptions
	retryOpts.MaxAttempts = opts.RetryMaxAttempts
	retryOpts.OnRetry = onRetry
	retryOpts.OnQuotaExceeded = onQuota

	params := EndpointParams{
		ServiceName: c.conf.ServiceName,
		Region:      opts.Region,
		Operation:   op.Name,
	}

	steps := []error{
		stack.Initialize.Intercept(middleware.Back, idempotencyTokenMiddleware[I, O](op.IdempotencyToken)),
		stack.Initialize.Intercept(middleware.Back, urlPathMiddleware[I, O](op.URLPath)),
		stack.Serialize.Intercept(middleware.Back, serializerMiddleware(op)),
		stack.Serialize.Intercept(middleware.Back, contentHeadersMiddleware[I, O](op.Codec)),
		stack.Build.Intercept(middleware.Back, auth.SelectionMiddleware[*middleware.Result[O]]()),
		stack.Build.Intercept(middleware.Back, endpoint.Middleware[EndpointParams, *middleware.Result[O]](c.endpointResolver, params)),
		stack.Build.Intercept(middleware.Back, checksum.RequestMiddleware[*middleware.Result[O]](algorithm)),
		stack.Finalize.Intercept(middleware.Back, retry.NewMiddleware[*middleware.Result[O]](retryOpts)),
		stack.Finalize.Intercept(middleware.Back, auth.SigningMiddleware[*middleware.Result[O]]()),
	}
	if op.ValidateResponseChecksum {
		steps = append(steps, stack.Deserialize.Intercept(middleware.Back, checksum.ResponseMiddleware[O](op.ResponseChecksums...)))
	}
	steps = append(steps,
		stack.Deserialize.Intercept(middleware.Back, errorMappingMiddleware[O](op.DeserializeError)),
		stack.Deserialize.Intercept(middleware.Back, deserializerMiddleware(op)),
	)
	if err := errors.Join(steps...); err != nil {
		return nil, err
	}

	if err := applyEntries(stack, c.registrar.entries); err != nil {
		return nil, err
	}
	if op.Customize != nil {
		if err := op.Customize(stack); err != nil {
			return nil, err
		}
	}
	return stack, nil
}

// idempotencyTokenMiddleware fills an empty token member. The token is set
// before the retry loop, so every attempt reuses it.
func idempotencyTokenMiddleware[I, O any](token *IdempotencyToken[I]) middleware.Middleware[I, *middleware.Result[O]] {
	return middleware.NewMiddleware(IdempotencyTokenMiddlewareID,
		func(ctx context.Context, oc *operation.Context, in I, next middleware.Handler[I, *middleware.Result[O]]) (*middleware.Result[O], error) {
			if token == nil || token.Get == nil || token.Set == nil || token.Get(in) != "" {
				return next.Handle(ctx, oc, in)
			}
			gen, ok := oc.IdempotencyTokenGenerator()
			if !ok {
				return next.Handle(ctx, oc, in)
			}
			t, err := gen.IdempotencyToken()
			if err != nil {
				return nil, &errspkg.SerializationError{Operation: oc.OperationName(), Message: "cannot generate idempotency token", Cause: err}
			}
			return next.Handle(ctx, oc, token.Set(in, t))
		})
}

func urlPathMiddleware[I, O any](build func(I) (string, error)) middleware.Middleware[I, *middleware.Result[O]] {
	return middleware.NewMiddleware(URLPathMiddlewareID,
		func(ctx context.Context, oc *operation.Context, in I, next middleware.Handler[I, *middleware.Result[O]]) (*middleware.Result[O], error) {
			if build != nil {
				path, err := build(in)
				if err != nil {
					return nil, &errspkg.SerializationError{
						Operation: oc.OperationName(),
						Message:   "Creating the url path failed, a required property in the path was nil",
						Cause:     err,
					}
				}
				oc.SetPath(path)
			}
			return next.Handle(ctx, oc, in)
		})
}

func serializerMiddleware[I, O any](op Operation[I, O]) middleware.Middleware[*middleware.SerializeInput[I], *middleware.Result[O]] {
	return middleware.NewMiddleware(SerializerMiddlewareID,
		func(ctx context.Context, oc *operation.Context, in *middleware.SerializeInput[I], next middleware.Handler[*middleware.SerializeInput[I], *middleware.Result[O]]) (*middleware.Result[O], error) {
			switch {
			case op.Serialize != nil:
				if err := op.Serialize(ctx, in.Parameters, in.Request); err != nil {
					return nil, asSerializationError(oc, "cannot serialize input", err)
				}
			case op.Codec != nil:
				data, err := op.Codec.Marshal(in.Parameters)
				if err != nil {
					return nil, asSerializationError(oc, "cannot serialize input", err)
				}
				in.Request.WithBody(httpapi.NewDataBody(data))
			}
			return next.Handle(ctx, oc, in)
		})
}

func asSerializationError(oc *operation.Context, msg string, err error) error {
	var se *errspkg.SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &errspkg.SerializationError{Operation: oc.OperationName(), Message: msg, Cause: err}
}

func contentHeadersMiddleware[I, O any](bc codec.BodyCodec) middleware.Middleware[*middleware.SerializeInput[I], *middleware.Result[O]] {
	return middleware.NewMiddleware(ContentHeadersMiddlewareID,
		func(ctx context.Context, oc *operation.Context, in *middleware.SerializeInput[I], next middleware.Handler[*middleware.SerializeInput[I], *middleware.Result[O]]) (*middleware.Result[O], error) {
			b := in.Request
			body := b.Body()
			if !body.IsNone() {
				if bc != nil && b.Header().Get("Content-Type") == "" {
					b.WithHeader("Content-Type", bc.ContentType())
				}
				if n := body.Length(); n >= 0 && b.Header().Get("Content-Length") == "" {
					b.WithHeader("Content-Length", strconv.FormatInt(n, 10))
				}
			}
			return next.Handle(ctx, oc, in)
		})
}

func errorMappingMiddleware[O any](deserializeError func(*operation.Context, *httpapi.Response) error) middleware.Middleware[*httpapi.Request, *middleware.Result[O]] {
	if deserializeError == nil {
		deserializeError = DeserializeServiceError
	}
	return middleware.NewMiddleware(ErrorMappingMiddlewareID,
		func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next middleware.Handler[*httpapi.Request, *middleware.Result[O]]) (*middleware.Result[O], error) {
			res, err := next.Handle(ctx, oc, req)
			if err != nil || res == nil || res.Response == nil {
				return res, err
			}
			if id := RequestID(res.Response); id != "" {
				oc.SetRequestID(id)
			}
			if res.Response.IsSuccess() {
				return res, nil
			}
			if err := deserializeError(oc, res.Response); err != nil {
				return res, err
			}
			return res, fmt.Errorf("opflow: unexpected status %d for %s", res.Response.StatusCode, oc.OperationName())
		})
}

// deserializerMiddleware decodes successful responses. Error responses pass
// through untouched for the error mapping above it.
func deserializerMiddleware[I, O any](op Operation[I, O]) middleware.Middleware[*httpapi.Request, *middleware.Result[O]] {
	return middleware.NewMiddleware(DeserializerMiddlewareID,
		func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next middleware.Handler[*httpapi.Request, *middleware.Result[O]]) (*middleware.Result[O], error) {
			res, err := next.Handle(ctx, oc, req)
			if err != nil || res == nil || !res.Response.IsSuccess() {
				return res, err
			}
			switch {
			case op.Deserialize != nil:
				out, err := op.Deserialize(res.Response)
				if err != nil {
					return nil, asSerializationError(oc, "cannot deserialize output", err)
				}
				res.Output = out
			case op.Codec != nil && len(res.Response.Body) > 0 && res.Response.StatusCode != http.StatusNoContent:
				if err := op.Codec.Unmarshal(res.Response.Body, &res.Output); err != nil {
					return nil, asSerializationError(oc, "cannot deserialize output", err)
				}
			}
			return res, nil
		})
}
