// Package endpoint applies a resolved endpoint to the request under
// construction. Rule evaluation itself stays with the caller's resolver.
package endpoint

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/smithy-go"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/opflow/internal/runtime/auth"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
)

// MiddlewareID is the id of the Build step endpoint middleware.
const MiddlewareID = "EndpointResolverMiddleware"

type Endpoint = smithyendpoints.Endpoint

// Context keys owned by this package.
var (
	ResolvedKey         = operation.NewKey[Endpoint]("ResolvedEndpoint")
	SigningAlgorithmKey = operation.NewKey[string]("SigningAlgorithm")
)

// Resolver resolves an endpoint from generated parameters.
type Resolver[P any] interface {
	ResolveEndpoint(ctx context.Context, params P) (Endpoint, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[P any] func(ctx context.Context, params P) (Endpoint, error)

func (f ResolverFunc[P]) ResolveEndpoint(ctx context.Context, params P) (Endpoint, error) {
	return f(ctx, params)
}

// Static always resolves ep, whatever the parameters.
func Static[P any](ep Endpoint) Resolver[P] {
	return ResolverFunc[P](func(context.Context, P) (Endpoint, error) {
		return ep, nil
	})
}

// Parse builds an endpoint from an absolute URL.
func Parse(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, err
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, fmt.Errorf("opflow: endpoint %q must be an absolute URL", raw)
	}
	return Endpoint{URI: *u}, nil
}

// AuthScheme is a signing hint carried by an endpoint.
type AuthScheme struct {
	Name          string
	SigningName   string
	SigningRegion string
}

type authSchemesKey struct{}

// SetAuthSchemes attaches signing hints to endpoint properties.
func SetAuthSchemes(p *smithy.Properties, schemes ...AuthScheme) {
	p.Set(authSchemesKey{}, schemes)
}

// AuthSchemes returns the signing hints of an endpoint.
func AuthSchemes(p *smithy.Properties) []AuthScheme {
	v, _ := p.Get(authSchemesKey{}).([]AuthScheme)
	return v
}

// ResolveAuthScheme returns the first hint this runtime understands.
func ResolveAuthScheme(schemes []AuthScheme) (AuthScheme, bool) {
	for _, s := range schemes {
		switch s.Name {
		case "sigv4", "sigv4a", "none":
			return s, true
		}
	}
	return AuthScheme{}, false
}

// Apply merges ep into b and copies endpoint signing overrides onto the
// Context and its selected auth scheme.
func Apply(oc *operation.Context, b *httpapi.RequestBuilder, ep Endpoint) error {
	host := oc.Host()
	if host == "" {
		host = oc.HostPrefix() + ep.URI.Hostname()
	}
	b.WithHost(host)
	if ep.URI.Scheme != "" {
		b.WithScheme(ep.URI.Scheme)
	}
	if p := ep.URI.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("opflow: endpoint port %q: %w", p, err)
		}
		b.WithPort(port)
	}
	path := oc.Path()
	if path == "" {
		path = b.Path()
	}
	b.WithPath(joinPath(ep.URI.Path, path))
	for name, values := range ep.URI.Query() {
		for _, v := range values {
			b.WithQueryItem(name, v)
		}
	}
	for name, values := range ep.Headers {
		b.RemoveHeader(name)
		for _, v := range values {
			b.AddHeader(name, v)
		}
	}

	hint, ok := ResolveAuthScheme(AuthSchemes(&ep.Properties))
	if !ok {
		return nil
	}
	operation.Set(oc, SigningAlgorithmKey, hint.Name)
	if hint.SigningName != "" {
		operation.Set(oc, operation.SigningNameKey, hint.SigningName)
	}
	if hint.SigningRegion != "" {
		operation.Set(oc, operation.SigningRegionKey, hint.SigningRegion)
	}
	if selected, ok := auth.Selected(oc); ok && selected != nil {
		operation.Set(oc, auth.SelectedSchemeKey, selected.WithSignerProperties(func(p *smithy.Properties) {
			if hint.SigningName != "" {
				auth.SetSigningName(p, hint.SigningName)
			}
			if hint.SigningRegion != "" {
				auth.SetSigningRegion(p, hint.SigningRegion)
			}
		}))
	}
	return nil
}

func joinPath(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	return base + "/" + path
}

// Middleware resolves the endpoint for params and applies it. It belongs in
// the Build step after auth scheme selection.
func Middleware[P, Out any](resolver Resolver[P], params P) middleware.Middleware[*httpapi.RequestBuilder, Out] {
	return middleware.NewMiddleware(MiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next middleware.Handler[*httpapi.RequestBuilder, Out]) (Out, error) {
			var zero Out
			if resolver == nil {
				return zero, fmt.Errorf("%w: %s", errspkg.ErrEndpointResolverRequired, oc.OperationName())
			}
			ep, err := resolver.ResolveEndpoint(ctx, params)
			if err != nil {
				return zero, fmt.Errorf("opflow: resolve endpoint for %s: %w", oc.OperationName(), err)
			}
			if err := Apply(oc, b, ep); err != nil {
				return zero, err
			}
			operation.Set(oc, ResolvedKey, ep)
			oc.Logger().Trace("endpoint resolved", loggingpkg.LogFields{
				"operation": oc.OperationName(),
				"host":      b.Host(),
				"path":      b.Path(),
			})
			return next.Handle(ctx, oc, b)
		})
}
