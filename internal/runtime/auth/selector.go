package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
)

// Middleware ids.
const (
	SelectionMiddlewareID = "AuthSchemeMiddleware"
	SigningMiddlewareID   = "SignerMiddleware"
)

const (
	msgNoSchemeResolver   = "No auth scheme resolver has been configured on the service."
	msgNoIdentityResolver = "No identity resolver has been configured on the service."
	msgNoSchemeResolved   = "Could not resolve auth scheme for the operation call. Log: "
)

// Context keys owned by this package.
var (
	SchemeResolverKey    = operation.NewKey[SchemeResolver]("AuthSchemeResolver")
	SchemesKey           = operation.NewKey[Schemes]("AuthSchemes")
	IdentityResolversKey = operation.NewKey[IdentityResolvers]("IdentityResolvers")
	SelectedSchemeKey    = operation.NewKey[*SelectedScheme]("SelectedAuthScheme")
)

// WithSchemeResolver registers the scheme resolver on a context builder.
func WithSchemeResolver(b *operation.Builder, r SchemeResolver) *operation.Builder {
	return operation.With(b, SchemeResolverKey, r)
}

// WithSchemes enables schemes, adding to any already enabled.
func WithSchemes(b *operation.Builder, schemes ...Scheme) *operation.Builder {
	merged := NewSchemes(schemes...)
	existing, _ := operation.Lookup(b, SchemesKey)
	for id, s := range existing {
		if _, ok := merged[id]; !ok {
			merged[id] = s
		}
	}
	return operation.With(b, SchemesKey, merged)
}

// WithIdentityResolver registers r for kind, adding to any already registered.
func WithIdentityResolver(b *operation.Builder, kind IdentityKind, r IdentityResolver) *operation.Builder {
	resolvers := IdentityResolvers{}
	existing, _ := operation.Lookup(b, IdentityResolversKey)
	for k, v := range existing {
		resolvers[k] = v
	}
	resolvers[kind] = r
	return operation.With(b, IdentityResolversKey, resolvers)
}

// SelectedScheme is the outcome of selection for one call.
type SelectedScheme struct {
	SchemeID         string
	Scheme           Scheme
	Identity         Identity
	SignerProperties smithy.Properties
}

// WithSignerProperties returns a copy whose signer properties were edited by
// fn. The receiver is left untouched.
func (s *SelectedScheme) WithSignerProperties(fn func(*smithy.Properties)) *SelectedScheme {
	cp := *s
	cp.SignerProperties = cloneProperties(s.SignerProperties)
	fn(&cp.SignerProperties)
	return &cp
}

// Selected returns the scheme chosen for the call, if any.
func Selected(oc *operation.Context) (*SelectedScheme, bool) {
	return operation.Get(oc, SelectedSchemeKey)
}

// Select walks the resolver's candidates in order and returns the first one
// that is enabled and has an identity resolver. noAuth never needs one.
func Select(ctx context.Context, oc *operation.Context) (*SelectedScheme, error) {
	op := oc.OperationName()
	resolver, ok := operation.Get(oc, SchemeResolverKey)
	if !ok || resolver == nil {
		return nil, &errspkg.AuthError{Operation: op, Message: msgNoSchemeResolver}
	}
	identities, ok := operation.Get(oc, IdentityResolversKey)
	if !ok || identities == nil {
		return nil, &errspkg.AuthError{Operation: op, Message: msgNoIdentityResolver}
	}
	enabled := operation.Value(oc, SchemesKey)

	candidates, err := resolver.ResolveAuthSchemes(ctx, op)
	if err != nil {
		return nil, &errspkg.AuthError{Operation: op, Message: "auth scheme resolution failed", Cause: err}
	}

	var log []string
	for _, option := range candidates {
		if option == nil {
			continue
		}
		scheme, ok := enabled[option.SchemeID]
		if !ok && option.SchemeID == SchemeIDNoAuth {
			scheme, ok = NewNoAuthScheme(), true
		}
		if !ok {
			log = append(log, fmt.Sprintf("Auth scheme %s was not enabled for this request.", option.SchemeID))
			continue
		}

		idResolver, ok := identities[scheme.IdentityKind()]
		if !ok && scheme.IdentityKind() == IdentityAnonymous {
			idResolver, ok = AnonymousResolver{}, true
		}
		if !ok || idResolver == nil {
			log = append(log, fmt.Sprintf("Auth scheme %s did not have an identity resolver configured.", option.SchemeID))
			continue
		}

		identity, err := idResolver.GetIdentity(ctx, option.IdentityProperties)
		if err != nil {
			return nil, &errspkg.AuthError{Operation: op, Message: "identity resolution failed for " + option.SchemeID, Cause: err}
		}
		return &SelectedScheme{
			SchemeID:         option.SchemeID,
			Scheme:           scheme,
			Identity:         identity,
			SignerProperties: scheme.SignerProperties(oc, option.SignerProperties),
		}, nil
	}

	return nil, &errspkg.AuthError{Operation: op, Message: msgNoSchemeResolved + strings.Join(log, " ")}
}

// SelectionMiddleware runs Select in the Build step and stores the result on
// the Context for the signing middleware.
func SelectionMiddleware[Out any]() middleware.Middleware[*httpapi.RequestBuilder, Out] {
	return middleware.NewMiddleware(SelectionMiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next middleware.Handler[*httpapi.RequestBuilder, Out]) (Out, error) {
			selected, err := Select(ctx, oc)
			if err != nil {
				var zero Out
				return zero, err
			}
			operation.Set(oc, SelectedSchemeKey, selected)
			oc.Logger().Debug("auth scheme selected", loggingpkg.LogFields{
				"operation": oc.OperationName(),
				"scheme":    selected.SchemeID,
			})
			return next.Handle(ctx, oc, b)
		})
}

// SigningMiddleware signs the request of every attempt with the selected
// scheme. It belongs in the Finalize step inside the retry middleware.
func SigningMiddleware[Out any]() middleware.Middleware[*httpapi.RequestBuilder, Out] {
	return middleware.NewMiddleware(SigningMiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next middleware.Handler[*httpapi.RequestBuilder, Out]) (Out, error) {
			var zero Out
			selected, ok := Selected(oc)
			if !ok || selected == nil {
				return zero, &errspkg.AuthError{Operation: oc.OperationName(), Message: "no auth scheme was selected before signing"}
			}
			if err := selected.Scheme.Signer().SignRequest(ctx, b, selected.Identity, selected.SignerProperties); err != nil {
				return zero, &errspkg.AuthError{Operation: oc.OperationName(), Message: "signing with " + selected.SchemeID + " failed", Cause: err}
			}
			return next.Handle(ctx, oc, b)
		})
}
