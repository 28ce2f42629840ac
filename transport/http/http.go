// Package http provides the net/http transport engine.
package http

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"

	"github.com/ThreeDotsLabs/watermill"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/transport"
)

// TransportName is the name used to register this engine.
const TransportName = "http"

// ClientFactory allows overriding the http.Client creation for testing.
var ClientFactory = func(rt nethttp.RoundTripper, cfg transport.Config) *nethttp.Client {
	return &nethttp.Client{
		Transport: rt,
		Timeout:   cfg.GetRequestTimeout(),
	}
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a new net/http engine.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Handler, error) {
	rt := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
	if raw := cfg.GetProxyURL(); raw != "" {
		proxy, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		rt.Proxy = nethttp.ProxyURL(proxy)
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return New(ClientFactory(rt, cfg), loggingpkg.NewWatermillServiceLogger(logger)), nil
}

// Capabilities returns the capabilities of this engine.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}

// Engine sends requests with an http.Client.
type Engine struct {
	client *nethttp.Client
	logger loggingpkg.ServiceLogger
}

// New wraps client. A nil client means http.DefaultClient.
func New(client *nethttp.Client, logger loggingpkg.ServiceLogger) *Engine {
	if client == nil {
		client = nethttp.DefaultClient
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Engine{client: client, logger: logger}
}

// Handle sends req and reads the whole response body. Network failures are
// returned as retryable transport errors.
func (e *Engine) Handle(ctx context.Context, oc *operation.Context, req *httpapi.Request) (*httpapi.Response, error) {
	hreq, err := req.NewHTTPRequest(ctx)
	if err != nil {
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: err, Permanent: true}
	}

	e.logger.Trace("sending request", loggingpkg.LogFields{
		"method": hreq.Method,
		"url":    hreq.URL.Redacted(),
	})

	resp, err := e.client.Do(hreq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errspkg.TransportError{Operation: oc.OperationName(), Cause: fmt.Errorf("read response body: %w", err)}
	}

	return &httpapi.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
