package auth

import (
	"context"

	"github.com/aws/smithy-go"
	smithyauth "github.com/aws/smithy-go/auth"
)

// Option is one candidate scheme for an operation, in priority order.
type Option = smithyauth.Option

// SchemeResolver lists the candidate schemes of an operation, most preferred
// first.
type SchemeResolver interface {
	ResolveAuthSchemes(ctx context.Context, operationName string) ([]*Option, error)
}

// SchemeResolverFunc adapts a function to SchemeResolver.
type SchemeResolverFunc func(ctx context.Context, operationName string) ([]*Option, error)

func (f SchemeResolverFunc) ResolveAuthSchemes(ctx context.Context, operationName string) ([]*Option, error) {
	return f(ctx, operationName)
}

// StaticSchemeResolver answers from a per-operation table and falls back to
// Default for operations it does not list.
type StaticSchemeResolver struct {
	Operations map[string][]string
	Default    []string
}

// NewStaticSchemeResolver resolves every operation to schemeIDs.
func NewStaticSchemeResolver(schemeIDs ...string) *StaticSchemeResolver {
	return &StaticSchemeResolver{Default: schemeIDs}
}

// WithOperation overrides the candidates of one operation.
func (r *StaticSchemeResolver) WithOperation(name string, schemeIDs ...string) *StaticSchemeResolver {
	if r.Operations == nil {
		r.Operations = make(map[string][]string)
	}
	r.Operations[name] = schemeIDs
	return r
}

func (r *StaticSchemeResolver) ResolveAuthSchemes(_ context.Context, operationName string) ([]*Option, error) {
	ids, ok := r.Operations[operationName]
	if !ok {
		ids = r.Default
	}
	out := make([]*Option, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Option{SchemeID: id})
	}
	return out, nil
}

// NewOption is a candidate carrying explicit signer properties.
func NewOption(schemeID string, signer smithy.Properties) *Option {
	return &Option{SchemeID: schemeID, SignerProperties: signer}
}
