package auth

import (
	"github.com/aws/smithy-go"
	smithyauth "github.com/aws/smithy-go/auth"

	"github.com/drblury/opflow/internal/runtime/operation"
)

// Scheme ids of the supported mechanisms.
const (
	SchemeIDSigV4  = smithyauth.SchemeIDSigV4
	SchemeIDSigV4A = smithyauth.SchemeIDSigV4A
	SchemeIDBearer = smithyauth.SchemeIDHTTPBearer
	SchemeIDAPIKey = smithyauth.SchemeIDHTTPAPIKey
	SchemeIDNoAuth = smithyauth.SchemeIDAnonymous
)

// Scheme is one auth mechanism a client may use.
type Scheme interface {
	SchemeID() string
	IdentityKind() IdentityKind
	Signer() Signer
	// SignerProperties completes base with defaults taken from the call.
	SignerProperties(oc *operation.Context, base smithy.Properties) smithy.Properties
}

// Schemes indexes the enabled schemes by id.
type Schemes map[string]Scheme

// NewSchemes indexes the given schemes. Later duplicates win.
func NewSchemes(schemes ...Scheme) Schemes {
	out := make(Schemes, len(schemes))
	for _, s := range schemes {
		if s != nil {
			out[s.SchemeID()] = s
		}
	}
	return out
}

func cloneProperties(base smithy.Properties) smithy.Properties {
	var p smithy.Properties
	p.SetAll(&base)
	return p
}

func sigv4Properties(oc *operation.Context, base smithy.Properties) smithy.Properties {
	p := cloneProperties(base)
	if _, ok := GetSigningName(&p); !ok {
		name := oc.SigningName()
		if name == "" {
			name = oc.ServiceName()
		}
		SetSigningName(&p, name)
	}
	if _, ok := GetSigningRegion(&p); !ok {
		region := oc.SigningRegion()
		if region == "" {
			region = oc.Region()
		}
		SetSigningRegion(&p, region)
	}
	return p
}

// SigV4Scheme signs with AWS Signature Version 4.
type SigV4Scheme struct {
	signer Signer
}

func NewSigV4Scheme() *SigV4Scheme { return &SigV4Scheme{signer: NewSigV4Signer()} }

func (s *SigV4Scheme) SchemeID() string           { return SchemeIDSigV4 }
func (s *SigV4Scheme) IdentityKind() IdentityKind { return IdentityAWS }
func (s *SigV4Scheme) Signer() Signer             { return s.signer }

func (s *SigV4Scheme) SignerProperties(oc *operation.Context, base smithy.Properties) smithy.Properties {
	return sigv4Properties(oc, base)
}

// SigV4AScheme is the asymmetric multi-region variant. It can be selected and
// carries signing hints, but signing fails with an AuthError.
type SigV4AScheme struct{}

func NewSigV4AScheme() *SigV4AScheme { return &SigV4AScheme{} }

func (s *SigV4AScheme) SchemeID() string           { return SchemeIDSigV4A }
func (s *SigV4AScheme) IdentityKind() IdentityKind { return IdentityAWS }
func (s *SigV4AScheme) Signer() Signer             { return unsupportedSigner{scheme: SchemeIDSigV4A} }

func (s *SigV4AScheme) SignerProperties(oc *operation.Context, base smithy.Properties) smithy.Properties {
	return sigv4Properties(oc, base)
}

// BearerScheme sends an HTTP bearer token.
type BearerScheme struct{}

func NewBearerScheme() *BearerScheme { return &BearerScheme{} }

func (s *BearerScheme) SchemeID() string           { return SchemeIDBearer }
func (s *BearerScheme) IdentityKind() IdentityKind { return IdentityBearer }
func (s *BearerScheme) Signer() Signer             { return bearerSigner{} }

func (s *BearerScheme) SignerProperties(_ *operation.Context, base smithy.Properties) smithy.Properties {
	return cloneProperties(base)
}

// APIKeyScheme sends a static key in a header or query parameter.
type APIKeyScheme struct {
	Name     string
	Location APIKeyLocation
	Prefix   string
}

// NewAPIKeyScheme defaults to the x-api-key header.
func NewAPIKeyScheme() *APIKeyScheme { return &APIKeyScheme{Name: "X-Api-Key"} }

func (s *APIKeyScheme) SchemeID() string           { return SchemeIDAPIKey }
func (s *APIKeyScheme) IdentityKind() IdentityKind { return IdentityAPIKey }
func (s *APIKeyScheme) Signer() Signer             { return apiKeySigner{} }

func (s *APIKeyScheme) SignerProperties(_ *operation.Context, base smithy.Properties) smithy.Properties {
	p := cloneProperties(base)
	if _, ok := GetAPIKeyName(&p); !ok {
		SetAPIKeyName(&p, s.Name)
		SetAPIKeyLocation(&p, s.Location)
		SetAPIKeyScheme(&p, s.Prefix)
	}
	return p
}

// NoAuthScheme sends requests unsigned. It needs no identity resolver.
type NoAuthScheme struct{}

func NewNoAuthScheme() *NoAuthScheme { return &NoAuthScheme{} }

func (s *NoAuthScheme) SchemeID() string           { return SchemeIDNoAuth }
func (s *NoAuthScheme) IdentityKind() IdentityKind { return IdentityAnonymous }
func (s *NoAuthScheme) Signer() Signer             { return noopSigner{} }

func (s *NoAuthScheme) SignerProperties(_ *operation.Context, base smithy.Properties) smithy.Properties {
	return cloneProperties(base)
}
