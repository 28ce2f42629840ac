// Package inprocess provides an engine that serves requests with an
// http.Handler in the same process. It is useful for tests and local
// development.
package inprocess

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/transport"
)

// TransportName is the name of this engine.
const TransportName = "inprocess"

// Engine dispatches every request to Handler.
type Engine struct {
	Handler http.Handler
}

// New returns an engine serving requests with h.
func New(h http.Handler) *Engine {
	return &Engine{Handler: h}
}

// Capabilities returns the capabilities of this engine.
func Capabilities() transport.Capabilities {
	return transport.InProcessCapabilities
}

// Handle serves req with the handler. Stream bodies are buffered first.
func (e *Engine) Handle(ctx context.Context, oc *operation.Context, req *httpapi.Request) (*httpapi.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Handler == nil {
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: errspkg.ErrTransportRequired, Permanent: true}
	}

	hreq, err := req.NewHTTPRequest(ctx)
	if err != nil {
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: err, Permanent: true}
	}
	hreq.RequestURI = hreq.URL.RequestURI()

	rec := httptest.NewRecorder()
	e.Handler.ServeHTTP(rec, hreq)
	res := rec.Result()
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: err}
	}
	return &httpapi.Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil
}
