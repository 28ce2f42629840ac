// Package auth selects the auth scheme of an operation call, resolves the
// identity it needs and signs every attempt.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
	smithyauth "github.com/aws/smithy-go/auth"
	"github.com/aws/smithy-go/auth/bearer"
)

// IdentityKind groups identity resolvers by the kind of identity they return.
type IdentityKind int

const (
	IdentityAWS IdentityKind = iota
	IdentityBearer
	IdentityAPIKey
	IdentityAnonymous
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityAWS:
		return "aws"
	case IdentityBearer:
		return "bearer"
	case IdentityAPIKey:
		return "apiKey"
	default:
		return "anonymous"
	}
}

type (
	Identity         = smithyauth.Identity
	IdentityResolver = smithyauth.IdentityResolver
)

// IdentityResolvers maps each identity kind to the resolver registered for it.
type IdentityResolvers map[IdentityKind]IdentityResolver

// AWSCredentialsIdentity carries AWS access keys.
type AWSCredentialsIdentity struct {
	Credentials aws.Credentials
}

func (i *AWSCredentialsIdentity) Expiration() time.Time {
	if !i.Credentials.CanExpire {
		return time.Time{}
	}
	return i.Credentials.Expires
}

// BearerTokenIdentity carries an HTTP bearer token.
type BearerTokenIdentity struct {
	Token bearer.Token
}

func (i *BearerTokenIdentity) Expiration() time.Time {
	if !i.Token.CanExpire {
		return time.Time{}
	}
	return i.Token.Expires
}

// APIKeyIdentity carries a static API key.
type APIKeyIdentity struct {
	Key string
}

func (i *APIKeyIdentity) Expiration() time.Time { return time.Time{} }

var (
	ErrEmptyCredentials = errors.New("opflow: resolved AWS credentials are empty")
	ErrEmptyToken       = errors.New("opflow: resolved bearer token is empty")
	ErrEmptyAPIKey      = errors.New("opflow: API key is empty")
)

// AWSCredentialsResolver resolves identities from an aws.CredentialsProvider.
type AWSCredentialsResolver struct {
	Provider aws.CredentialsProvider
}

// NewAWSCredentialsResolver caches the provider so expiring credentials are
// refreshed only when needed.
func NewAWSCredentialsResolver(provider aws.CredentialsProvider) *AWSCredentialsResolver {
	if _, cached := provider.(*aws.CredentialsCache); !cached {
		provider = aws.NewCredentialsCache(provider)
	}
	return &AWSCredentialsResolver{Provider: provider}
}

// NewStaticAWSCredentialsResolver resolves fixed access keys.
func NewStaticAWSCredentialsResolver(accessKeyID, secretAccessKey, sessionToken string) *AWSCredentialsResolver {
	return &AWSCredentialsResolver{
		Provider: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
	}
}

// NewDefaultAWSCredentialsResolver uses the SDK default credential chain
// (environment, shared files, SSO, IMDS).
func NewDefaultAWSCredentialsResolver(ctx context.Context, region string) (*AWSCredentialsResolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Credentials == nil {
		return nil, ErrEmptyCredentials
	}
	return NewAWSCredentialsResolver(cfg.Credentials), nil
}

func (r *AWSCredentialsResolver) GetIdentity(ctx context.Context, _ smithy.Properties) (Identity, error) {
	creds, err := r.Provider.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.HasKeys() {
		return nil, ErrEmptyCredentials
	}
	return &AWSCredentialsIdentity{Credentials: creds}, nil
}

// BearerTokenResolver resolves identities from a bearer.TokenProvider.
type BearerTokenResolver struct {
	Provider bearer.TokenProvider
}

// NewStaticBearerTokenResolver resolves a fixed token.
func NewStaticBearerTokenResolver(token string) *BearerTokenResolver {
	return &BearerTokenResolver{Provider: bearer.StaticTokenProvider{Token: bearer.Token{Value: token}}}
}

func (r *BearerTokenResolver) GetIdentity(ctx context.Context, _ smithy.Properties) (Identity, error) {
	tok, err := r.Provider.RetrieveBearerToken(ctx)
	if err != nil {
		return nil, err
	}
	if tok.Value == "" {
		return nil, ErrEmptyToken
	}
	return &BearerTokenIdentity{Token: tok}, nil
}

// APIKeyResolver resolves a fixed API key.
type APIKeyResolver struct {
	Key string
}

func (r *APIKeyResolver) GetIdentity(context.Context, smithy.Properties) (Identity, error) {
	if r.Key == "" {
		return nil, ErrEmptyAPIKey
	}
	return &APIKeyIdentity{Key: r.Key}, nil
}

// AnonymousResolver always resolves the anonymous identity.
type AnonymousResolver struct{}

func (AnonymousResolver) GetIdentity(context.Context, smithy.Properties) (Identity, error) {
	return &smithyauth.AnonymousIdentity{}, nil
}
