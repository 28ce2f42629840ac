package runtime

import (
	"context"
	"fmt"

	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
)

// CallHandler continues a call past an Initialize middleware.
type CallHandler func(ctx context.Context) error

// CallMiddleware wraps a whole call in the Initialize step. It does not see
// the typed input or output, so one instance serves every operation.
type CallMiddleware interface {
	ID() string
	HandleCall(ctx context.Context, oc *operation.Context, next CallHandler) error
}

// RequestHandler continues a call past a Build or Finalize middleware.
type RequestHandler func(ctx context.Context, b *httpapi.RequestBuilder) (*httpapi.Response, error)

// RequestMiddleware wraps the request in the Build or Finalize step.
type RequestMiddleware interface {
	ID() string
	HandleRequest(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error)
}

// ResponseHandler continues a call past a Deserialize middleware.
type ResponseHandler func(ctx context.Context, req *httpapi.Request) (*httpapi.Response, error)

// ResponseMiddleware wraps the transport in the Deserialize step.
type ResponseMiddleware interface {
	ID() string
	HandleResponse(ctx context.Context, oc *operation.Context, req *httpapi.Request, next ResponseHandler) (*httpapi.Response, error)
}

type callFunc struct {
	id string
	fn func(ctx context.Context, oc *operation.Context, next CallHandler) error
}

func (m callFunc) ID() string { return m.id }
func (m callFunc) HandleCall(ctx context.Context, oc *operation.Context, next CallHandler) error {
	return m.fn(ctx, oc, next)
}

// NewCallMiddleware wraps fn as a CallMiddleware.
func NewCallMiddleware(id string, fn func(ctx context.Context, oc *operation.Context, next CallHandler) error) CallMiddleware {
	return callFunc{id: id, fn: fn}
}

type requestFunc struct {
	id string
	fn func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error)
}

func (m requestFunc) ID() string { return m.id }
func (m requestFunc) HandleRequest(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error) {
	return m.fn(ctx, oc, b, next)
}

// NewRequestMiddleware wraps fn as a RequestMiddleware.
func NewRequestMiddleware(id string, fn func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next RequestHandler) (*httpapi.Response, error)) RequestMiddleware {
	return requestFunc{id: id, fn: fn}
}

type responseFunc struct {
	id string
	fn func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next ResponseHandler) (*httpapi.Response, error)
}

func (m responseFunc) ID() string { return m.id }
func (m responseFunc) HandleResponse(ctx context.Context, oc *operation.Context, req *httpapi.Request, next ResponseHandler) (*httpapi.Response, error) {
	return m.fn(ctx, oc, req, next)
}

// NewResponseMiddleware wraps fn as a ResponseMiddleware.
func NewResponseMiddleware(id string, fn func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next ResponseHandler) (*httpapi.Response, error)) ResponseMiddleware {
	return responseFunc{id: id, fn: fn}
}

type stepKind int

const (
	stepInitialize stepKind = iota
	stepBuild
	stepFinalize
	stepDeserialize
)

type entry struct {
	step stepKind
	pos  middleware.Position
	call CallMiddleware
	req  RequestMiddleware
	resp ResponseMiddleware
}

// Registrar collects the middleware a registration contributes. Entries are
// inserted into every call's stack after the standard middleware, so
// positions may refer to standard middleware ids.
type Registrar struct {
	client  *Client
	entries []entry

	onRetry         []func(oc *operation.Context, info retry.AttemptInfo, err error)
	onQuotaExceeded []func(oc *operation.Context, err error)
}

// Client returns the client being configured.
func (r *Registrar) Client() *Client { return r.client }

// Initialize adds m to the Initialize step.
func (r *Registrar) Initialize(pos middleware.Position, m CallMiddleware) {
	r.entries = append(r.entries, entry{step: stepInitialize, pos: pos, call: m})
}

// Build adds m to the Build step.
func (r *Registrar) Build(pos middleware.Position, m RequestMiddleware) {
	r.entries = append(r.entries, entry{step: stepBuild, pos: pos, req: m})
}

// Finalize adds m to the Finalize step. Finalize middleware placed after the
// retry middleware run once per attempt.
func (r *Registrar) Finalize(pos middleware.Position, m RequestMiddleware) {
	r.entries = append(r.entries, entry{step: stepFinalize, pos: pos, req: m})
}

// Deserialize adds m to the Deserialize step.
func (r *Registrar) Deserialize(pos middleware.Position, m ResponseMiddleware) {
	r.entries = append(r.entries, entry{step: stepDeserialize, pos: pos, resp: m})
}

// OnRetry observes every retry the retry middleware schedules.
func (r *Registrar) OnRetry(fn func(oc *operation.Context, info retry.AttemptInfo, err error)) {
	r.onRetry = append(r.onRetry, fn)
}

// OnQuotaExceeded observes retries refused by the retry quota.
func (r *Registrar) OnQuotaExceeded(fn func(oc *operation.Context, err error)) {
	r.onQuotaExceeded = append(r.onQuotaExceeded, fn)
}

func (r *Registrar) retryObservers() (func(*operation.Context, retry.AttemptInfo, error), func(*operation.Context, error)) {
	var onRetry func(*operation.Context, retry.AttemptInfo, error)
	if fns := r.onRetry; len(fns) > 0 {
		onRetry = func(oc *operation.Context, info retry.AttemptInfo, err error) {
			for _, fn := range fns {
				fn(oc, info, err)
			}
		}
	}
	var onQuota func(*operation.Context, error)
	if fns := r.onQuotaExceeded; len(fns) > 0 {
		onQuota = func(oc *operation.Context, err error) {
			for _, fn := range fns {
				fn(oc, err)
			}
		}
	}
	return onRetry, onQuota
}

func applyEntries[I, O any](stack *middleware.Stack[I, O], entries []entry) error {
	for _, e := range entries {
		var err error
		switch e.step {
		case stepInitialize:
			err = stack.Initialize.Intercept(e.pos, adaptCall[I, O](e.call))
		case stepBuild:
			err = stack.Build.Intercept(e.pos, adaptRequest[O](e.req))
		case stepFinalize:
			err = stack.Finalize.Intercept(e.pos, adaptRequest[O](e.req))
		case stepDeserialize:
			err = stack.Deserialize.Intercept(e.pos, adaptResponse[O](e.resp))
		default:
			err = fmt.Errorf("unknown step %d", e.step)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func adaptCall[I, O any](m CallMiddleware) middleware.Middleware[I, *middleware.Result[O]] {
	return middleware.NewMiddleware(m.ID(),
		func(ctx context.Context, oc *operation.Context, in I, next middleware.Handler[I, *middleware.Result[O]]) (*middleware.Result[O], error) {
			var res *middleware.Result[O]
			err := m.HandleCall(ctx, oc, func(ctx context.Context) error {
				var err error
				res, err = next.Handle(ctx, oc, in)
				return err
			})
			return res, err
		})
}

func adaptRequest[O any](m RequestMiddleware) middleware.Middleware[*httpapi.RequestBuilder, *middleware.Result[O]] {
	return middleware.NewMiddleware(m.ID(),
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next middleware.Handler[*httpapi.RequestBuilder, *middleware.Result[O]]) (*middleware.Result[O], error) {
			var res *middleware.Result[O]
			resp, err := m.HandleRequest(ctx, oc, b, func(ctx context.Context, b *httpapi.RequestBuilder) (*httpapi.Response, error) {
				var err error
				res, err = next.Handle(ctx, oc, b)
				if res == nil {
					return nil, err
				}
				return res.Response, err
			})
			return withResponse(res, resp), err
		})
}

func adaptResponse[O any](m ResponseMiddleware) middleware.Middleware[*httpapi.Request, *middleware.Result[O]] {
	return middleware.NewMiddleware(m.ID(),
		func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next middleware.Handler[*httpapi.Request, *middleware.Result[O]]) (*middleware.Result[O], error) {
			var res *middleware.Result[O]
			resp, err := m.HandleResponse(ctx, oc, req, func(ctx context.Context, req *httpapi.Request) (*httpapi.Response, error) {
				var err error
				res, err = next.Handle(ctx, oc, req)
				if res == nil {
					return nil, err
				}
				return res.Response, err
			})
			return withResponse(res, resp), err
		})
}

// withResponse applies the response a type-erased middleware returned, which
// may replace the one produced further down the chain.
func withResponse[O any](res *middleware.Result[O], resp *httpapi.Response) *middleware.Result[O] {
	switch {
	case resp == nil:
		return res
	case res == nil:
		return &middleware.Result[O]{Response: resp}
	case res.Response != resp:
		res.Response = resp
	}
	return res
}
